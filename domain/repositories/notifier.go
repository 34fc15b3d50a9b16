package repositories

import "github.com/Suraj127-git/medchat/domain/entities"

// Notifier surfaces a failure to the user once, whatever component raised it
type Notifier interface {
	Notify(kind entities.NoticeKind, channel entities.NoticeChannel, text string)
}
