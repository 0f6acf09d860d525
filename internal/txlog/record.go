// ABOUTME: Tagged transaction record types and their textual encoding
// ABOUTME: One newline-delimited record per mutation, tag first, fields space-separated

package txlog

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Record tags as they appear on disk.
const (
	TagAddUser            = "ADD-USER"
	TagAddAdmin           = "ADD-ADMIN"
	TagAddConversation    = "ADD-CONVERSATION"
	TagAddMessage         = "ADD-MESSAGE"
	TagDeleteUser         = "DELETE-USER"
	TagDeleteConversation = "DELETE-CONVERSATION"
	TagAdminGrant         = "ADD-ADMIN-GRANT"
	TagAdminRevoke        = "REMOVE-ADMIN-GRANT"
)

// Record is the closed set of mutations the log can carry. The
// concrete types below are the only implementations; consumers switch
// over them exhaustively.
type Record interface {
	isRecord()
}

// AddUser records a user creation.
type AddUser struct {
	ID       uuid.UUID
	Name     string
	Creation time.Time
}

// AddAdmin records the creation of a user that was granted admin at
// birth (the bootstrap first user).
type AddAdmin struct {
	ID       uuid.UUID
	Name     string
	Creation time.Time
}

// AddConversation records a conversation creation.
type AddConversation struct {
	ID       uuid.UUID
	Title    string
	Creation time.Time
	Owner    uuid.UUID
}

// AddMessage records a message append.
type AddMessage struct {
	ID           uuid.UUID
	Content      string
	Creation     time.Time
	Conversation uuid.UUID
	Author       uuid.UUID
}

// DeleteUser is the tombstone for a removed user.
type DeleteUser struct {
	ID   uuid.UUID
	Time time.Time
}

// DeleteConversation is the tombstone for a removed conversation.
type DeleteConversation struct {
	ID   uuid.UUID
	Time time.Time
}

// AdminGrant records an admin grant to an existing user.
type AdminGrant struct {
	ID   uuid.UUID
	Time time.Time
}

// AdminRevoke records an admin revocation.
type AdminRevoke struct {
	ID   uuid.UUID
	Time time.Time
}

func (AddUser) isRecord()            {}
func (AddAdmin) isRecord()           {}
func (AddConversation) isRecord()    {}
func (AddMessage) isRecord()         {}
func (DeleteUser) isRecord()         {}
func (DeleteConversation) isRecord() {}
func (AdminGrant) isRecord()         {}
func (AdminRevoke) isRecord()        {}

// Encode renders a record as one log line, without the trailing
// newline. Text fields are quoted when they contain characters the
// tokenizer would otherwise split on.
func Encode(r Record) string {
	switch r := r.(type) {
	case AddUser:
		return fmt.Sprintf("%s %s %s %d", TagAddUser, r.ID, quoteField(r.Name), r.Creation.UnixMilli())
	case AddAdmin:
		return fmt.Sprintf("%s %s %s %d", TagAddAdmin, r.ID, quoteField(r.Name), r.Creation.UnixMilli())
	case AddConversation:
		return fmt.Sprintf("%s %s %s %d %s", TagAddConversation, r.ID, quoteField(r.Title), r.Creation.UnixMilli(), r.Owner)
	case AddMessage:
		return fmt.Sprintf("%s %s %s %d %s %s", TagAddMessage, r.ID, quoteField(r.Content), r.Creation.UnixMilli(), r.Conversation, r.Author)
	case DeleteUser:
		return fmt.Sprintf("%s %s %d", TagDeleteUser, r.ID, r.Time.UnixMilli())
	case DeleteConversation:
		return fmt.Sprintf("%s %s %d", TagDeleteConversation, r.ID, r.Time.UnixMilli())
	case AdminGrant:
		return fmt.Sprintf("%s %s %d", TagAdminGrant, r.ID, r.Time.UnixMilli())
	case AdminRevoke:
		return fmt.Sprintf("%s %s %d", TagAdminRevoke, r.ID, r.Time.UnixMilli())
	default:
		panic(fmt.Sprintf("txlog: unknown record type %T", r))
	}
}

// Parse decodes one log line into a record. Any structural problem
// (unknown tag, wrong field count, unparsable id or time) is an error;
// replay treats that as fatal.
func Parse(line string) (Record, error) {
	fields, err := tokenize(line)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty record")
	}

	tag := fields[0]
	args := fields[1:]

	switch tag {
	case TagAddUser, TagAddAdmin:
		if len(args) != 3 {
			return nil, fmt.Errorf("%s: want 3 fields, got %d", tag, len(args))
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: id: %w", tag, err)
		}
		creation, err := parseMillis(args[2])
		if err != nil {
			return nil, fmt.Errorf("%s: time: %w", tag, err)
		}
		if tag == TagAddAdmin {
			return AddAdmin{ID: id, Name: args[1], Creation: creation}, nil
		}
		return AddUser{ID: id, Name: args[1], Creation: creation}, nil

	case TagAddConversation:
		if len(args) != 4 {
			return nil, fmt.Errorf("%s: want 4 fields, got %d", tag, len(args))
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: id: %w", tag, err)
		}
		creation, err := parseMillis(args[2])
		if err != nil {
			return nil, fmt.Errorf("%s: time: %w", tag, err)
		}
		owner, err := uuid.Parse(args[3])
		if err != nil {
			return nil, fmt.Errorf("%s: owner: %w", tag, err)
		}
		return AddConversation{ID: id, Title: args[1], Creation: creation, Owner: owner}, nil

	case TagAddMessage:
		if len(args) != 5 {
			return nil, fmt.Errorf("%s: want 5 fields, got %d", tag, len(args))
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: id: %w", tag, err)
		}
		creation, err := parseMillis(args[2])
		if err != nil {
			return nil, fmt.Errorf("%s: time: %w", tag, err)
		}
		conversation, err := uuid.Parse(args[3])
		if err != nil {
			return nil, fmt.Errorf("%s: conversation: %w", tag, err)
		}
		author, err := uuid.Parse(args[4])
		if err != nil {
			return nil, fmt.Errorf("%s: author: %w", tag, err)
		}
		return AddMessage{ID: id, Content: args[1], Creation: creation, Conversation: conversation, Author: author}, nil

	case TagDeleteUser, TagDeleteConversation, TagAdminGrant, TagAdminRevoke:
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: want 2 fields, got %d", tag, len(args))
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: id: %w", tag, err)
		}
		at, err := parseMillis(args[1])
		if err != nil {
			return nil, fmt.Errorf("%s: time: %w", tag, err)
		}
		switch tag {
		case TagDeleteUser:
			return DeleteUser{ID: id, Time: at}, nil
		case TagDeleteConversation:
			return DeleteConversation{ID: id, Time: at}, nil
		case TagAdminGrant:
			return AdminGrant{ID: id, Time: at}, nil
		default:
			return AdminRevoke{ID: id, Time: at}, nil
		}

	default:
		return nil, fmt.Errorf("unknown record tag %q", tag)
	}
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
