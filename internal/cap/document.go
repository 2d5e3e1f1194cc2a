// Package cap binds inbound Common Alerting Protocol 1.2 documents.
package cap

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	broadcast_errors "cell-broadcast/pkg/errors"

	"github.com/google/uuid"
)

// Namespace is the CAP 1.2 XML namespace.
const Namespace = "urn:oasis:names:tc:emergency:cap:1.2"

// MsgType values defined by CAP that this system accepts.
const (
	MsgTypeAlert  = "Alert"
	MsgTypeUpdate = "Update"
	MsgTypeCancel = "Cancel"
)

// Document is a parsed CAP 1.2 alert element.
type Document struct {
	XMLName    xml.Name `xml:"alert"`
	Identifier string   `xml:"identifier"`
	Sender     string   `xml:"sender"`
	Sent       string   `xml:"sent"`
	Status     string   `xml:"status"`
	MsgType    string   `xml:"msgType"`
	Scope      string   `xml:"scope"`
	References string   `xml:"references"`
	Infos      []Info   `xml:"info"`
}

type Info struct {
	Language    string `xml:"language"`
	Category    string `xml:"category"`
	Event       string `xml:"event"`
	Urgency     string `xml:"urgency"`
	Severity    string `xml:"severity"`
	Certainty   string `xml:"certainty"`
	Expires     string `xml:"expires"`
	Headline    string `xml:"headline"`
	Description string `xml:"description"`
	Areas       []Area `xml:"area"`
}

type Area struct {
	AreaDesc string   `xml:"areaDesc"`
	Polygons []string `xml:"polygon"`
}

// Parse unmarshals and validates a CAP 1.2 document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed CAP document: %v", broadcast_errors.ErrInvalidInput, err)
	}
	if doc.XMLName.Space != Namespace {
		return nil, fmt.Errorf("%w: unexpected namespace %q", broadcast_errors.ErrInvalidInput, doc.XMLName.Space)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the fields CAP 1.2 marks required, plus the constraints
// this system imposes on msgType and info blocks.
func (d *Document) Validate() error {
	for field, value := range map[string]string{
		"identifier": d.Identifier,
		"sender":     d.Sender,
		"sent":       d.Sent,
		"status":     d.Status,
		"msgType":    d.MsgType,
		"scope":      d.Scope,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: missing CAP element %s", broadcast_errors.ErrInvalidInput, field)
		}
	}
	if _, err := time.Parse("2006-01-02T15:04:05-07:00", d.Sent); err != nil {
		return fmt.Errorf("%w: invalid sent timestamp %q", broadcast_errors.ErrInvalidInput, d.Sent)
	}
	switch d.MsgType {
	case MsgTypeAlert, MsgTypeUpdate:
		if len(d.Infos) == 0 {
			return fmt.Errorf("%w: %s requires at least one info block", broadcast_errors.ErrInvalidInput, d.MsgType)
		}
	case MsgTypeCancel:
		if strings.TrimSpace(d.References) == "" {
			return fmt.Errorf("%w: Cancel requires references", broadcast_errors.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unsupported msgType %q", broadcast_errors.ErrInvalidInput, d.MsgType)
	}
	return nil
}

// ReferenceEventIDs extracts the event ids from the whitespace-separated
// references element. Each reference is {domain}/{event-id},{sent};
// unparseable entries are skipped.
func (d *Document) ReferenceEventIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, ref := range strings.Fields(d.References) {
		slash := strings.Index(ref, "/")
		comma := strings.Index(ref, ",")
		if slash < 0 || comma < 0 || comma < slash {
			continue
		}
		id, err := uuid.Parse(ref[slash+1 : comma])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
