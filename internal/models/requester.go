package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RequesterKind tags which form of requester a booking carries
type RequesterKind string

const (
	RequesterRegistered RequesterKind = "user"
	RequesterGuest      RequesterKind = "guest"
)

// ClientRecord holds the contact details of an anonymous requester
type ClientRecord struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	Email          string `json:"email,omitempty"`
	NIDDocumentRef string `json:"nid_document_ref,omitempty"`
	Adults         int    `json:"adults"`
	Children       int    `json:"children"`
}

// Complete reports whether name, phone and address are all present
func (c ClientRecord) Complete() bool {
	return strings.TrimSpace(c.Name) != "" &&
		strings.TrimSpace(c.Phone) != "" &&
		strings.TrimSpace(c.Address) != ""
}

// Requester is either a registered user or a guest client, never both.
// Build one with Registered or Guest.
type Requester struct {
	kind   RequesterKind
	userID uuid.UUID
	client ClientRecord
}

// Registered creates a requester backed by a user account
func Registered(userID uuid.UUID) Requester {
	return Requester{kind: RequesterRegistered, userID: userID}
}

// Guest creates a requester backed by an embedded client record
func Guest(client ClientRecord) Requester {
	return Requester{kind: RequesterGuest, client: client}
}

// Kind returns the requester tag; the zero Requester has an empty kind
func (r Requester) Kind() RequesterKind {
	return r.kind
}

// UserID returns the user id for registered requesters
func (r Requester) UserID() (uuid.UUID, bool) {
	return r.userID, r.kind == RequesterRegistered
}

// Client returns the client record for guest requesters
func (r Requester) Client() (ClientRecord, bool) {
	return r.client, r.kind == RequesterGuest
}

// Validate checks the requester shape required before any write
func (r Requester) Validate() error {
	switch r.kind {
	case RequesterRegistered:
		if r.userID == uuid.Nil {
			return fmt.Errorf("user_id is required")
		}
	case RequesterGuest:
		if !r.client.Complete() {
			return fmt.Errorf("client name, phone and address are required")
		}
	default:
		return fmt.Errorf("either a registered user or a client record is required")
	}
	return nil
}

type requesterJSON struct {
	Kind   RequesterKind `json:"kind"`
	UserID *uuid.UUID    `json:"user_id,omitempty"`
	Client *ClientRecord `json:"client,omitempty"`
}

// MarshalJSON renders the variant with an explicit kind tag
func (r Requester) MarshalJSON() ([]byte, error) {
	out := requesterJSON{Kind: r.kind}
	switch r.kind {
	case RequesterRegistered:
		id := r.userID
		out.UserID = &id
	case RequesterGuest:
		client := r.client
		out.Client = &client
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the variant from its tagged form
func (r *Requester) UnmarshalJSON(data []byte) error {
	var in requesterJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case RequesterRegistered:
		if in.UserID == nil {
			return fmt.Errorf("requester of kind %q needs user_id", in.Kind)
		}
		*r = Registered(*in.UserID)
	case RequesterGuest:
		if in.Client == nil {
			return fmt.Errorf("requester of kind %q needs client", in.Kind)
		}
		*r = Guest(*in.Client)
	default:
		return fmt.Errorf("unknown requester kind %q", in.Kind)
	}
	return nil
}
