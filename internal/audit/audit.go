// Package audit fingerprints the increment ledger and checks the worked-hours
// counters of work items against it.
package audit

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/joescharf/scrum/internal/models"
)

// encMode uses Core Deterministic Encoding so the same rows always produce
// the same bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("audit: CBOR encoder initialization failed: " + err.Error())
	}
}

// record is the canonical form of one increment. The sprint member link is
// left out because removing a member clears it.
type record struct {
	ID       string `cbor:"1,keyasint"`
	ItemID   string `cbor:"2,keyasint"`
	SprintID string `cbor:"3,keyasint"`
	UserID   string `cbor:"4,keyasint"`
	Date     string `cbor:"5,keyasint"`
	Hours    int    `cbor:"6,keyasint"`
	State    string `cbor:"7,keyasint,omitempty"`
}

func canonical(inc *models.Increment) record {
	r := record{
		ID:       inc.ID,
		ItemID:   inc.ItemID,
		SprintID: inc.SprintID,
		UserID:   inc.UserID,
		Date:     inc.Date.Format(models.DateLayout),
		Hours:    inc.Hours,
	}
	if inc.State != nil {
		r.State = string(*inc.State)
	}
	return r
}

// Digest returns the hex BLAKE3 hash of the ledger rows in id order.
func Digest(incs []*models.Increment) (string, error) {
	sorted := make([]*models.Increment, len(incs))
	copy(sorted, incs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := blake3.New()
	for _, inc := range sorted {
		data, err := encMode.Marshal(canonical(inc))
		if err != nil {
			return "", fmt.Errorf("encode increment %s: %w", inc.ID, err)
		}
		if _, err := h.Write(data); err != nil {
			return "", fmt.Errorf("hash increment %s: %w", inc.ID, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Drift is a work item whose counter disagrees with the ledger.
type Drift struct {
	ItemID string `json:"item_id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	Worked int    `json:"worked_hours"`
	Logged int    `json:"logged_hours"`
}

// Reconcile compares each item's WorkedHours with the hours rows logged
// against it. Items are reported in number order.
func Reconcile(items []*models.WorkItem, incs []*models.Increment) []Drift {
	logged := make(map[string]int)
	for _, inc := range incs {
		if inc.IsTransition() {
			continue
		}
		logged[inc.ItemID] += inc.Hours
	}

	var drift []Drift
	for _, w := range items {
		if w.WorkedHours == logged[w.ID] {
			continue
		}
		drift = append(drift, Drift{ItemID: w.ID, Number: w.Number, Title: w.Title, Worked: w.WorkedHours, Logged: logged[w.ID]})
	}
	sort.Slice(drift, func(i, j int) bool { return drift[i].Number < drift[j].Number })
	return drift
}

// Report is the audit of one project.
type Report struct {
	ProjectID   string  `json:"project_id"`
	Rows        int     `json:"rows"`
	Transitions int     `json:"transitions"`
	Hours       int     `json:"hours"`
	Digest      string  `json:"digest"`
	Drift       []Drift `json:"drift"`
}

// Clean reports whether every counter matches the ledger.
func (r *Report) Clean() bool {
	return len(r.Drift) == 0
}

// Build audits the items of a project against their ledger rows.
func Build(projectID string, items []*models.WorkItem, incs []*models.Increment) (*Report, error) {
	digest, err := Digest(incs)
	if err != nil {
		return nil, err
	}
	r := &Report{ProjectID: projectID, Rows: len(incs), Digest: digest, Drift: Reconcile(items, incs)}
	for _, inc := range incs {
		if inc.IsTransition() {
			r.Transitions++
			continue
		}
		r.Hours += inc.Hours
	}
	return r, nil
}
