package dialogue

import "github.com/brokerdesk/offer-service/internal/domain/entity"

// SignalKind is the closed set of inputs the engine understands. The
// transport maps its native events (button callbacks, free text,
// photos, magic keywords) into this set; the engine never looks at
// transport strings.
type SignalKind int

const (
	// SignalChoice carries a discrete selection: one of a field's
	// preset choices, or a field key while picking what to edit.
	SignalChoice SignalKind = iota
	// SignalCustom is the "own value" escape on a choice field.
	SignalCustom
	// SignalText carries free text.
	SignalText
	// SignalPhoto carries one opaque photo reference.
	SignalPhoto
	// SignalComplete ends the photo-collection phase.
	SignalComplete
	// SignalPublish, SignalEdit and SignalCancel are the review
	// actions; cancel is accepted in every phase.
	SignalPublish
	SignalEdit
	SignalCancel
)

type Signal struct {
	Kind  SignalKind
	Value string
}

// ReplyKind tells the transport what to render next.
type ReplyKind int

const (
	// ReplyAskField prompts for Reply.Field (choices rendered as
	// buttons when present).
	ReplyAskField ReplyKind = iota
	// ReplyAskCustom asks for free text after the custom escape.
	ReplyAskCustom
	// ReplyInvalidInput repeats the prompt of Reply.Field with
	// Reply.ErrText; the step did not advance.
	ReplyInvalidInput
	// ReplyPhotoProgress acknowledges a photo; PhotoCount is the
	// running total (zero right after entering the phase).
	ReplyPhotoProgress
	// ReplyPhotosRequired rejects completion with zero photos.
	ReplyPhotosRequired
	// ReplyAskEditField shows the field menu during review.
	ReplyAskEditField
	// ReplyReview renders the accumulated offer with
	// publish/edit/cancel actions.
	ReplyReview
	// ReplyPublished is terminal: the offer went out, session gone.
	ReplyPublished
	// ReplyPublishFailed keeps the session in review after a gateway
	// failure; ErrText says what happened.
	ReplyPublishFailed
	// ReplyCancelled is terminal: draft deleted, session gone.
	ReplyCancelled
	// ReplySessionLost is terminal: the backing offer disappeared.
	ReplySessionLost
	// ReplyNoSession means the actor has no dialogue in flight.
	ReplyNoSession
)

type Reply struct {
	Kind       ReplyKind
	Field      *entity.FieldDefinition
	Offer      *entity.Offer
	PhotoCount int
	ErrText    string
	// DiscardedDraft is set when starting a new offer threw away a
	// previous unfinished one.
	DiscardedDraft bool
}
