package models

// NotificationContact links a Stacks address to notification channels.
// An address with no contact record simply receives no notifications.
type NotificationContact struct {
	// Address is the Stacks address the contact belongs to.
	Address string `json:"address" gorm:"column:address;primaryKey"`
	// TelegramUsername is the telegram handle registered for the address.
	TelegramUsername string `json:"telegramUsername" gorm:"column:telegram_username;index"`
	// TelegramChatID is filled in once the user messages the bot.
	TelegramChatID string `json:"telegramChatId" gorm:"column:telegram_chat_id"`
	// Email is the email address notifications are sent to.
	Email string `json:"email" gorm:"column:email"`
}
