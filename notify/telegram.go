package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/timesheet"
	"gopkg.in/telebot.v3"
)

// Sender is the part of *telebot.Bot the Telegram sink uses.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	SendAlbum(to telebot.Recipient, a telebot.Album, opts ...interface{}) ([]telebot.Message, error)
}

// Telegram posts submissions (summary plus evidence) and reminders to one chat.
type Telegram struct {
	sender Sender
	chat   telebot.ChatID
	log    *logrus.Entry
}

var (
	_ timesheet.Dispatcher = (*Telegram)(nil)
	_ Notifier             = (*Telegram)(nil)
)

// NewTelegram connects a bot with token. The bot is only used to send; no
// poller is started.
func NewTelegram(token string, chatID int64, log *logrus.Entry) (*Telegram, error) {
	bot, err := telebot.NewBot(telebot.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return NewTelegramWithSender(bot, chatID, log), nil
}

// NewTelegramWithSender is NewTelegram with an existing sender.
func NewTelegramWithSender(sender Sender, chatID int64, log *logrus.Entry) *Telegram {
	return &Telegram{
		sender: sender,
		chat:   telebot.ChatID(chatID),
		log:    log.WithField("component", "telegram"),
	}
}

// Dispatch sends the summary, then the evidence. Telegram media groups need
// at least two items, so a single attachment goes out as a plain photo or
// document.
func (t *Telegram) Dispatch(ctx context.Context, p timesheet.SubmissionPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.sender.Send(t.chat, FormatSubmission(p)); err != nil {
		return fmt.Errorf("sending summary: %w", err)
	}

	caption := fmt.Sprintf("%s %s to %s", p.OwnerID, p.PeriodStart, p.PeriodEnd)
	switch len(p.Evidence) {
	case 0:
	case 1:
		if _, err := t.sender.Send(t.chat, mediaFor(p.Evidence[0], caption)); err != nil {
			return fmt.Errorf("sending evidence: %w", err)
		}
	default:
		album := make(telebot.Album, 0, len(p.Evidence))
		for i, e := range p.Evidence {
			c := ""
			if i == 0 {
				c = caption
			}
			album = append(album, mediaFor(e, c))
		}
		if _, err := t.sender.SendAlbum(t.chat, album); err != nil {
			return fmt.Errorf("sending evidence album: %w", err)
		}
	}

	t.log.WithFields(logrus.Fields{
		"owner":    string(p.OwnerID),
		"cycle":    p.CycleID,
		"evidence": len(p.Evidence),
	}).Info("Submission delivered to Telegram")
	return nil
}

func mediaFor(e timesheet.EncodedEvidence, caption string) telebot.Inputtable {
	file := telebot.FromReader(bytes.NewReader(e.Data))
	if strings.HasPrefix(e.ContentType, "image/") {
		return &telebot.Photo{File: file, Caption: caption}
	}
	return &telebot.Document{File: file, FileName: e.Filename, Caption: caption}
}

// NotifyReminders sends all of an owner's reminders as one message.
func (t *Telegram) NotifyReminders(ctx context.Context, owner generic.OwnerID, reminders []timesheet.Reminder) error {
	if len(reminders) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.sender.Send(t.chat, FormatReminders(owner, reminders)); err != nil {
		return fmt.Errorf("sending reminders: %w", err)
	}
	return nil
}
