// Package wire defines the XML documents exchanged between stb clients and
// the stb server. Both halves of the protocol share these types so the
// request and response schemas cannot drift apart.
package wire

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Request types.
const (
	TypePull = "pull"
	TypePush = "push"
)

// Push results.
const (
	ResultOK             = "OK"
	ResultFormatConflict = "FORMAT_CONFLICT"
)

// Row is a full row on the wire: id and version as attributes, the opaque
// payload as character data.
type Row struct {
	ID      int64  `xml:"id,attr"`
	Version int64  `xml:"version,attr"`
	Data    string `xml:",chardata"`
}

// NewRow is a row being submitted for the first time; the server assigns
// its id.
type NewRow struct {
	Data string `xml:",chardata"`
}

// RowID carries only an id attribute, used in push acknowledgements.
type RowID struct {
	ID int64 `xml:"id,attr"`
}

// RowSet wraps a list of rows so an empty list still serialises as an
// empty container element rather than disappearing from the document.
type RowSet struct {
	Rows []Row `xml:"row"`
}

// NewRowSet wraps a list of id-less rows.
type NewRowSet struct {
	Rows []NewRow `xml:"row"`
}

// IDSet wraps a list of row ids.
type IDSet struct {
	IDs []RowID `xml:"row"`
}

// PullRequest asks the server for every row changed after PulledVersion.
type PullRequest struct {
	XMLName       xml.Name `xml:"request"`
	Type          string   `xml:"type"`
	PulledVersion int64    `xml:"pulled_version"`
}

// PushRequest submits locally modified rows (with ids) and brand-new rows
// (without). Either set may be empty.
type PushRequest struct {
	XMLName xml.Name  `xml:"request"`
	Type    string    `xml:"type"`
	Rows    RowSet    `xml:"rows"`
	NewRows NewRowSet `xml:"new_rows"`
}

// Request is the server-side view of an incoming document. Fields not
// present for the given type are left at their zero values; PulledVersion
// is nil when the element is absent.
type Request struct {
	XMLName       xml.Name `xml:"request"`
	Type          string   `xml:"type"`
	PulledVersion *int64   `xml:"pulled_version"`
	Rows          []Row    `xml:"rows>row"`
	NewRows       []NewRow `xml:"new_rows>row"`
}

// PullResponse carries the current table version and the changed rows.
type PullResponse struct {
	XMLName xml.Name `xml:"response"`
	Version int64    `xml:"version"`
	Rows    RowSet   `xml:"rows"`
}

// PushResponse reports the outcome of a push: the table version after the
// commit, how many submitted rows conflicted, which ids were modified, and
// the ids assigned to new rows in submission order.
type PushResponse struct {
	XMLName       xml.Name `xml:"response"`
	Result        string   `xml:"result"`
	Version       int64    `xml:"version"`
	ConflictCount int      `xml:"conflict_count"`
	ModifiedRows  IDSet    `xml:"modified_rows"`
	NewRows       IDSet    `xml:"new_rows"`
}

// ParseRequest decodes a request document from r.
func ParseRequest(r io.Reader) (*Request, error) {
	var req Request
	if err := xml.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	if req.Type != TypePull && req.Type != TypePush {
		return nil, fmt.Errorf("unrecognized request type %q", req.Type)
	}
	return &req, nil
}

// ParsePullResponse decodes a pull response document.
func ParsePullResponse(data []byte) (*PullResponse, error) {
	var resp PullResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse pull response: %w", err)
	}
	return &resp, nil
}

// ParsePushResponse decodes a push response document.
func ParsePushResponse(data []byte) (*PushResponse, error) {
	var resp PushResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse push response: %w", err)
	}
	return &resp, nil
}

// Marshal renders any wire document as a standalone XML fragment.
func Marshal(v any) ([]byte, error) {
	data, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return data, nil
}
