package entity

import (
	"errors"
	"time"
)

// PublicationRef points at the rendered offer in the group chat. It is
// set exactly once, at publish time, and is used to edit the rendering
// in place afterwards.
type PublicationRef struct {
	ChatID    int64 `bson:"chat_id" json:"chat_id"`
	MessageID int   `bson:"message_id" json:"message_id"`
}

type Offer struct {
	ID            int64             `bson:"_id" json:"id"`
	CreatedAt     time.Time         `bson:"created_at" json:"created_at"`
	CreatorID     int64             `bson:"creator_id" json:"creator_id"`
	CreatorHandle string            `bson:"creator_handle" json:"creator_handle"`
	BrokerHandle  string            `bson:"broker_handle" json:"broker_handle"`
	Fields        map[string]string `bson:"fields" json:"fields"`
	Photos        []string          `bson:"photos" json:"photos"`
	Status        Status            `bson:"status" json:"status"`
	IsPublished   bool              `bson:"is_published" json:"is_published"`
	Publication   *PublicationRef   `bson:"publication,omitempty" json:"publication,omitempty"`
}

func NewOffer(creatorID int64, creatorHandle string, schema *Schema) (*Offer, error) {
	if creatorID == 0 {
		return nil, errors.New("creator ID cannot be empty")
	}
	return &Offer{
		CreatedAt:     time.Now().UTC(),
		CreatorID:     creatorID,
		CreatorHandle: creatorHandle,
		Fields:        schema.EmptyFields(),
		Photos:        []string{},
		Status:        StatusUnknown,
	}, nil
}

// Clone returns a deep copy. Repositories hand out clones so readers
// never observe a mutation in progress.
func (o *Offer) Clone() *Offer {
	cp := *o
	cp.Fields = make(map[string]string, len(o.Fields))
	for k, v := range o.Fields {
		cp.Fields[k] = v
	}
	cp.Photos = append([]string(nil), o.Photos...)
	if o.Publication != nil {
		ref := *o.Publication
		cp.Publication = &ref
	}
	return &cp
}

// StatusEvent is one immutable entry of the status log. Every offer
// gets its first event (UNKNOWN) at creation, so aggregation never has
// to special-case offers without history.
type StatusEvent struct {
	OfferID     int64     `bson:"offer_id" json:"offer_id"`
	Timestamp   time.Time `bson:"ts" json:"ts"`
	ActorID     int64     `bson:"actor_id" json:"actor_id"`
	ActorHandle string    `bson:"actor_handle" json:"actor_handle"`
	Status      Status    `bson:"status" json:"status"`
}
