package localstore

import (
	"encoding/xml"
	"fmt"
	"os"
)

// On-disk document. The layout is fixed: a <sharedtable> root with the
// repository coordinates and the three row containers. Missing
// containers are tolerated on load and always written on save.

type xmlDocument struct {
	XMLName    xml.Name    `xml:"sharedtable"`
	Repository xmlRepo     `xml:"repository"`
	Rows       *xmlRowSet  `xml:"rows"`
	Conflicts  *xmlRowSet  `xml:"conflict_rows"`
	NewRows    *xmlNewRows `xml:"new_rows"`
}

type xmlRepo struct {
	URL           string `xml:"url"`
	Realm         string `xml:"realm"`
	Username      string `xml:"username"`
	Password      string `xml:"password"`
	PulledVersion int64  `xml:"pulled_version"`
}

type xmlRowSet struct {
	Rows []xmlRow `xml:"row"`
}

type xmlRow struct {
	ID       int64  `xml:"id,attr"`
	Version  int64  `xml:"version,attr"`
	Modified string `xml:"modified,attr,omitempty"`
	Data     string `xml:",chardata"`
}

type xmlNewRows struct {
	Rows []xmlNewRow `xml:"row"`
}

type xmlNewRow struct {
	Data string `xml:",chardata"`
}

func load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read local store: %w", err)
	}

	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse local store %s: %w", path, err)
	}

	s := &Store{
		path: path,
		Repository: Repository{
			URL:           doc.Repository.URL,
			Realm:         doc.Repository.Realm,
			Username:      doc.Repository.Username,
			Password:      doc.Repository.Password,
			PulledVersion: doc.Repository.PulledVersion,
		},
	}
	if doc.Rows != nil {
		for _, r := range doc.Rows.Rows {
			s.rows = append(s.rows, &Row{ID: r.ID, Version: r.Version, Modified: r.Modified != "", Data: r.Data})
		}
	}
	if doc.Conflicts != nil {
		for _, r := range doc.Conflicts.Rows {
			s.conflicts = append(s.conflicts, &Row{ID: r.ID, Version: r.Version, Modified: r.Modified != "", Data: r.Data})
		}
	}
	if doc.NewRows != nil {
		for _, r := range doc.NewRows.Rows {
			s.pending = append(s.pending, &NewRow{Data: r.Data})
		}
	}
	s.reindex()
	return s, nil
}

func (s *Store) document() *xmlDocument {
	doc := &xmlDocument{
		Repository: xmlRepo{
			URL:           s.Repository.URL,
			Realm:         s.Repository.Realm,
			Username:      s.Repository.Username,
			Password:      s.Repository.Password,
			PulledVersion: s.Repository.PulledVersion,
		},
		Rows:      &xmlRowSet{},
		Conflicts: &xmlRowSet{},
		NewRows:   &xmlNewRows{},
	}
	for _, r := range s.Rows() {
		doc.Rows.Rows = append(doc.Rows.Rows, encodeRow(r))
	}
	for _, r := range s.Conflicts() {
		doc.Conflicts.Rows = append(doc.Conflicts.Rows, encodeRow(r))
	}
	for _, n := range s.pending {
		doc.NewRows.Rows = append(doc.NewRows.Rows, xmlNewRow{Data: n.Data})
	}
	return doc
}

func encodeRow(r *Row) xmlRow {
	out := xmlRow{ID: r.ID, Version: r.Version, Data: r.Data}
	if r.Modified {
		out.Modified = "1"
	}
	return out
}

// Save writes the store to a temp sibling and renames it over the
// target, keeping the previous file as a "<path>~" backup.
func (s *Store) Save() error {
	data, err := xml.MarshalIndent(s.document(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode local store: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write local store: %w", err)
	}

	if _, err := os.Stat(s.path); err == nil {
		backup := s.path + "~"
		if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("drop old backup: %w", err)
		}
		if err := os.Rename(s.path, backup); err != nil {
			return fmt.Errorf("keep backup: %w", err)
		}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace local store: %w", err)
	}
	return nil
}
