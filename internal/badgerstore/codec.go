package badgerstore

import (
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("badgerstore: cbor encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("badgerstore: cbor decoder initialization failed: " + err.Error())
	}
}

// messageRecord is the stored value. Times are unix nanos in UTC.
type messageRecord struct {
	ID         string `cbor:"1,keyasint"`
	SenderID   string `cbor:"2,keyasint"`
	ReceiverID string `cbor:"3,keyasint"`
	Text       string `cbor:"4,keyasint"`
	Read       bool   `cbor:"5,keyasint"`
	CreatedAt  int64  `cbor:"6,keyasint"`
	UpdatedAt  int64  `cbor:"7,keyasint"`
}

type userRecord struct {
	ID     string  `cbor:"1,keyasint"`
	Name   string  `cbor:"2,keyasint"`
	Avatar *string `cbor:"3,keyasint,omitempty"`
}

func fromMessage(m domain.Message) messageRecord {
	return messageRecord{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Read:       m.Read,
		CreatedAt:  m.CreatedAt.UnixNano(),
		UpdatedAt:  m.UpdatedAt.UnixNano(),
	}
}

func (r messageRecord) toMessage() domain.Message {
	return domain.Message{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Text:       r.Text,
		Read:       r.Read,
		CreatedAt:  time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt:  time.Unix(0, r.UpdatedAt).UTC(),
	}
}

func encodeMessage(m domain.Message) ([]byte, error) { return encMode.Marshal(fromMessage(m)) }

func decodeMessage(b []byte) (domain.Message, error) {
	var r messageRecord
	if err := decMode.Unmarshal(b, &r); err != nil {
		return domain.Message{}, err
	}
	return r.toMessage(), nil
}

func encodeUser(u domain.User) ([]byte, error) {
	return encMode.Marshal(userRecord{ID: u.ID, Name: u.Name, Avatar: u.Avatar})
}

func decodeUser(b []byte) (domain.User, error) {
	var r userRecord
	if err := decMode.Unmarshal(b, &r); err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: r.ID, Name: r.Name, Avatar: r.Avatar}, nil
}
