package seed

import (
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/IBA-HOK/CoCoIRU/internal/domain"
)

// kindCommunityUpdate tallies the member-link PUTs of the notes workflow.
const kindCommunityUpdate = "community_update"

type Tally struct {
	Kind      string `json:"kind"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
}

func (t Tally) Failed() int { return t.Attempted - t.Succeeded }

// CommunityCredential is one row of the credential table printed after the
// communities workflow.
type CommunityCredential struct {
	Name     string
	ID       domain.ID
	Password string
}

// Summary is the outcome of one workflow run. Tallies are kept in the order
// their phases ran.
type Summary struct {
	Workflow string  `json:"workflow"`
	RunID    string  `json:"run_id"`
	Tallies  []Tally `json:"tallies"`

	Credentials []CommunityCredential `json:"-"`
}

func newSummary(workflow, runID string) *Summary {
	return &Summary{Workflow: workflow, RunID: runID}
}

func (s *Summary) add(kind string, attempted, succeeded int) {
	for i := range s.Tallies {
		if s.Tallies[i].Kind == kind {
			s.Tallies[i].Attempted += attempted
			s.Tallies[i].Succeeded += succeeded
			return
		}
	}
	s.Tallies = append(s.Tallies, Tally{Kind: kind, Attempted: attempted, Succeeded: succeeded})
}

func (s *Summary) tally(kind string) Tally {
	for _, t := range s.Tallies {
		if t.Kind == kind {
			return t
		}
	}
	return Tally{Kind: kind}
}

// Succeeded is the number of kind entities the run created.
func (s *Summary) Succeeded(kind domain.Kind) int { return s.tally(kind.Name).Succeeded }

func (s *Summary) Attempted(kind domain.Kind) int { return s.tally(kind.Name).Attempted }

// Updated is the number of communities whose member link was written.
func (s *Summary) Updated() int { return s.tally(kindCommunityUpdate).Succeeded }

// WriteTo prints the summary as an aligned table.
func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n%s run %s\n", s.Workflow, s.RunID)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "kind\tattempted\tcreated\tfailed\t")
	for _, t := range s.Tallies {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t\n", t.Kind, t.Attempted, t.Succeeded, t.Failed())
	}
	_ = tw.Flush()

	if len(s.Credentials) > 0 {
		fmt.Fprintln(&buf, "\ncommunity credentials")
		tw = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "community_id\tname\tpassword")
		for _, c := range s.Credentials {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID.String(), c.Name, c.Password)
		}
		_ = tw.Flush()
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}
