// ABOUTME: JSON shapes returned by the HTTP boundary
// ABOUTME: Entity ids travel as strings, times as unix milliseconds, optionals as nullable strings

package server

import (
	"github.com/google/uuid"

	"github.com/2389/fold-chat/internal/model"
)

type userJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Creation int64  `json:"creation_ms"`
}

type conversationJSON struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Owner    string `json:"owner"`
	Creation int64  `json:"creation_ms"`
}

type payloadJSON struct {
	Conversation string  `json:"conversation"`
	First        *string `json:"first"`
	Last         *string `json:"last"`
}

type messageJSON struct {
	ID       string  `json:"id"`
	Author   string  `json:"author"`
	Content  string  `json:"content"`
	Creation int64   `json:"creation_ms"`
	Next     *string `json:"next"`
}

func userDTO(u *model.User) userJSON {
	return userJSON{ID: u.ID.String(), Name: u.Name, Creation: u.Creation.UnixMilli()}
}

func usersDTO(users []*model.User) []userJSON {
	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, userDTO(u))
	}
	return out
}

func conversationDTO(c *model.Conversation) conversationJSON {
	return conversationJSON{
		ID:       c.ID.String(),
		Title:    c.Title,
		Owner:    c.Owner.String(),
		Creation: c.Creation.UnixMilli(),
	}
}

func conversationsDTO(convs []*model.Conversation) []conversationJSON {
	out := make([]conversationJSON, 0, len(convs))
	for _, c := range convs {
		out = append(out, conversationDTO(c))
	}
	return out
}

func payloadDTO(p *model.Payload) payloadJSON {
	return payloadJSON{
		Conversation: p.ConversationID.String(),
		First:        idString(p.First),
		Last:         idString(p.Last),
	}
}

func payloadsDTO(payloads []*model.Payload) []payloadJSON {
	out := make([]payloadJSON, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, payloadDTO(p))
	}
	return out
}

func messageDTO(m *model.Message) messageJSON {
	return messageJSON{
		ID:       m.ID.String(),
		Author:   m.Author.String(),
		Content:  m.Content,
		Creation: m.Creation.UnixMilli(),
		Next:     idString(m.Next),
	}
}

func messagesDTO(messages []*model.Message) []messageJSON {
	out := make([]messageJSON, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageDTO(m))
	}
	return out
}

func idsDTO(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
