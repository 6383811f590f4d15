package models

// ConsentEventKind classifies consent audit entries.
type ConsentEventKind string

const (
	// ConsentEventAdded means a consent photo appeared and was ingested.
	ConsentEventAdded ConsentEventKind = "added"
	// ConsentEventRemoved means a consent photo was deleted and the person's
	// record revoked.
	ConsentEventRemoved ConsentEventKind = "removed"
	// ConsentEventCaptured means this service wrote a new consent photo,
	// triggered by the API or a spoken consent phrase.
	ConsentEventCaptured ConsentEventKind = "captured"
)

// ConsentEvent is one entry in the consent audit trail. The consent
// directory is the source of truth for who is consented; this table records
// how it got that way.
type ConsentEvent struct {
	BaseModel

	Kind ConsentEventKind `gorm:"not null;size:20;index" json:"kind"`

	// Name is the normalized lowercase name from the consent filename.
	Name string `gorm:"not null;size:255;index" json:"name"`

	// Path is the consent file the event refers to.
	Path string `gorm:"not null;size:1024" json:"path"`
}

// Validate checks the event invariants before persistence.
func (e *ConsentEvent) Validate() error {
	switch e.Kind {
	case ConsentEventAdded, ConsentEventRemoved, ConsentEventCaptured:
	default:
		return ErrInvalidConsentEvent
	}
	if e.Name == "" {
		return ErrNameRequired
	}
	return nil
}
