package events

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/umputun/chat-guard/lib/modcheck"
)

//go:generate moq --out mocks/tb_api.go --pkg mocks --with-resets --skip-ensure . TbAPI

// TbAPI is an interface for telegram bot API, only subset of methods used
type TbAPI interface {
	GetUpdatesChan(config tbapi.UpdateConfig) tbapi.UpdatesChannel
	Send(c tbapi.Chattable) (tbapi.Message, error)
	Request(c tbapi.Chattable) (*tbapi.APIResponse, error)
	GetChat(config tbapi.ChatInfoConfig) (tbapi.ChatFullInfo, error)
	GetChatAdministrators(config tbapi.ChatAdministratorsConfig) ([]tbapi.ChatMember, error)
	GetFileDirectURL(fileID string) (string, error)
}

// TelegramTransport adapts a telegram bot API client to the Transport interface.
// Room ids are chat ids rendered as strings, user ids likewise.
type TelegramTransport struct {
	API        TbAPI
	Timeout    time.Duration // long-poll timeout, default 60s
	HTTPClient *http.Client  // client for media downloads, default http.DefaultClient
}

// Updates converts the telegram update stream into engine events. Join events are
// emitted per new chat member, messages carry media refs when media is attached.
func (t *TelegramTransport) Updates(ctx context.Context) <-chan Event {
	out := make(chan Event, 100)

	timeout := 60
	if t.Timeout > 0 {
		timeout = int(t.Timeout.Seconds())
	}
	u := tbapi.NewUpdate(0)
	u.Timeout = timeout
	updates := t.API.GetUpdatesChan(u)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil {
					continue
				}
				for _, event := range t.transform(update.Message) {
					select {
					case out <- event:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}

// transform makes engine events from a telegram message: one join event per new
// member, plus a message event if there is any content.
func (t *TelegramTransport) transform(msg *tbapi.Message) []Event {
	roomID := strconv.FormatInt(msg.Chat.ID, 10)

	var events []Event
	for _, member := range msg.NewChatMembers {
		if member.IsBot {
			continue
		}
		events = append(events, Event{
			Type:   EventJoin,
			RoomID: roomID,
			User:   User{ID: strconv.FormatInt(member.ID, 10), DisplayName: displayName(&member)},
		})
	}

	if msg.From == nil {
		return events
	}

	message := &Message{Ref: strconv.Itoa(msg.MessageID), Text: msg.Text}
	switch {
	case msg.Animation != nil:
		message.MediaKind = modcheck.MediaGIF
		message.MediaRef = msg.Animation.FileID
		message.Text = msg.Caption
	case msg.Video != nil:
		message.MediaKind = modcheck.MediaVideo
		message.MediaRef = msg.Video.FileID
		message.Text = msg.Caption
	case len(msg.Photo) > 0:
		message.MediaKind = modcheck.MediaImage
		message.MediaRef = msg.Photo[len(msg.Photo)-1].FileID // largest size last
		message.Text = msg.Caption
	}

	if message.Text == "" && message.MediaKind == "" {
		return events // service message with nothing to moderate
	}

	events = append(events, Event{
		Type:    EventMessage,
		RoomID:  roomID,
		User:    User{ID: strconv.FormatInt(msg.From.ID, 10), DisplayName: displayName(msg.From)},
		Message: message,
	})
	return events
}

// DeliverMessage sends text and an optional image to the room.
func (t *TelegramTransport) DeliverMessage(_ context.Context, roomID string, content Content) error {
	chatID, err := strconv.ParseInt(roomID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad room id %q: %w", roomID, err)
	}

	if len(content.Image) > 0 {
		photo := tbapi.NewPhoto(chatID, tbapi.FileBytes{Name: "challenge.png", Bytes: content.Image})
		photo.Caption = content.Text
		if _, err := t.API.Send(photo); err != nil {
			return fmt.Errorf("can't send photo to %s: %w", roomID, err)
		}
		return nil
	}

	if _, err := t.API.Send(tbapi.NewMessage(chatID, content.Text)); err != nil {
		return fmt.Errorf("can't send message to %s: %w", roomID, err)
	}
	return nil
}

// DeleteMessage removes the message by its ref.
func (t *TelegramTransport) DeleteMessage(_ context.Context, roomID, messageRef string) error {
	chatID, err := strconv.ParseInt(roomID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad room id %q: %w", roomID, err)
	}
	msgID, err := strconv.Atoi(messageRef)
	if err != nil {
		return fmt.Errorf("bad message ref %q: %w", messageRef, err)
	}
	if _, err := t.API.Request(tbapi.NewDeleteMessage(chatID, msgID)); err != nil {
		return fmt.Errorf("can't delete message %s in %s: %w", messageRef, roomID, err)
	}
	return nil
}

// RemoveParticipant bans the user from the room.
func (t *TelegramTransport) RemoveParticipant(_ context.Context, roomID, userID string) error {
	chatID, err := strconv.ParseInt(roomID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad room id %q: %w", roomID, err)
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad user id %q: %w", userID, err)
	}
	_, err = t.API.Request(tbapi.BanChatMemberConfig{
		ChatMemberConfig: tbapi.ChatMemberConfig{
			ChatConfig: tbapi.ChatConfig{ChatID: chatID},
			UserID:     uid,
		},
	})
	if err != nil {
		return fmt.Errorf("can't remove %s from %s: %w", userID, roomID, err)
	}
	return nil
}

// RoomMetadata fetches the room display name and its administrators. The full
// participant list is not available from the bot API, so only admins carry roles.
func (t *TelegramTransport) RoomMetadata(_ context.Context, roomID string) (RoomMetadata, error) {
	chatID, err := strconv.ParseInt(roomID, 10, 64)
	if err != nil {
		return RoomMetadata{}, fmt.Errorf("bad room id %q: %w", roomID, err)
	}

	chat, err := t.API.GetChat(tbapi.ChatInfoConfig{ChatConfig: tbapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		return RoomMetadata{}, fmt.Errorf("can't get chat %s: %w", roomID, err)
	}
	meta := RoomMetadata{DisplayName: chat.Title}

	admins, err := t.API.GetChatAdministrators(tbapi.ChatAdministratorsConfig{ChatConfig: tbapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		log.Printf("[WARN] can't get administrators for %s: %v", roomID, err)
		return meta, nil
	}
	for _, admin := range admins {
		role := "admin"
		if admin.Status == "creator" {
			role = "owner"
		}
		meta.Participants = append(meta.Participants, Participant{
			ID:          strconv.FormatInt(admin.User.ID, 10),
			DisplayName: displayName(admin.User),
			Role:        role,
		})
	}
	return meta, nil
}

// DownloadMedia fetches media bytes by file id.
func (t *TelegramTransport) DownloadMedia(ctx context.Context, mediaRef string) ([]byte, error) {
	url, err := t.API.GetFileDirectURL(mediaRef)
	if err != nil {
		return nil, fmt.Errorf("can't get file url for %s: %w", mediaRef, err)
	}

	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("can't make download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("can't download media %s: %w", mediaRef, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download failed with status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("can't read media body: %w", err)
	}
	return data, nil
}

func displayName(u *tbapi.User) string {
	if u == nil {
		return ""
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" {
		name = u.UserName
	}
	return name
}
