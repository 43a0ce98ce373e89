package agent

import (
	"testing"
)

func TestParseReview_Approved(t *testing.T) {
	output := `VERDICT: APPROVED
COMMENTS:
- main.py:12: consider a docstring
`
	r := ParseReview(output)
	if !r.Approved {
		t.Fatal("expected approval")
	}
	if len(r.Comments) != 1 || r.Comments[0] != "main.py:12: consider a docstring" {
		t.Errorf("unexpected comments: %v", r.Comments)
	}
}

func TestParseReview_FirstLineApproved(t *testing.T) {
	if !ParseReview("APPROVED").Approved {
		t.Fatal("expected a bare APPROVED first line to approve")
	}
	if !ParseReview("Final decision: approved\nlooks fine").Approved {
		t.Fatal("expected first line ending in approved to approve")
	}
}

func TestParseReview_CaseInsensitiveAnywhere(t *testing.T) {
	output := "Review notes\n\nThe code works.\n\nverdict: approved"
	if !ParseReview(output).Approved {
		t.Fatal("expected token match anywhere, case-insensitive")
	}
}

func TestParseReview_Spanish(t *testing.T) {
	if !ParseReview("VEREDICTO: APROBADO\nEl documento cumple.").Approved {
		t.Fatal("expected Spanish verdict to approve")
	}
	if !ParseReview("Resultado: APROBADO").Approved {
		t.Fatal("expected Spanish first line to approve")
	}
}

func TestParseReview_Rejected(t *testing.T) {
	output := `VERDICT: REJECTED
COMMENTS:
- app.py:3: SQL injection in query
- app.py:9: missing error handling

NEXT STEPS:
- rewrite
`
	r := ParseReview(output)
	if r.Approved {
		t.Fatal("expected rejection")
	}
	if len(r.Comments) != 2 {
		t.Fatalf("expected 2 comments (stop at next section), got %v", r.Comments)
	}
}

func TestParseReview_AmbiguousDefaultsToReject(t *testing.T) {
	for _, output := range []string{"", "Looks mostly fine, some nits.", "APPROVED?\nnot sure", "VERDICT:\nAPPROVED later"} {
		if ParseReview(output).Approved {
			t.Errorf("expected rejection for %q", output)
		}
	}
}

func TestParseReview_NegatedFirstLineRejects(t *testing.T) {
	for _, output := range []string{
		"VERDICT: NOT APPROVED\n- missing tests",
		"NOT APPROVED",
		"Veredicto: NO APROBADO",
		"Status: unapproved",
	} {
		if ParseReview(output).Approved {
			t.Errorf("expected rejection for %q", output)
		}
	}
}
