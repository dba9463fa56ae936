package quality

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/byteness/credsession/cserrors"
)

type fixedEstimator struct{ entropy Entropy }

func (f fixedEstimator) Estimate(password string, userInputs []string) Entropy { return f.entropy }

func TestEvaluateRejectsShortPassword(t *testing.T) {
	err := Evaluate(Config{}, fixedEstimator{Entropy{Score: 4}}, "short", nil)
	if cserrors.CodeOf(err) != cserrors.CodePasswordQuality {
		t.Fatalf("expected a password-quality error for a too-short password, got %v", err)
	}
}

func TestEvaluateRejectsLowEntropy(t *testing.T) {
	est := fixedEstimator{Entropy{Score: 1, Suggestions: []string{"add more words"}}}
	err := Evaluate(Config{}, est, "longenoughpassword", nil)
	got, ok := cserrors.As(err)
	if !ok || got.Code() != cserrors.CodePasswordQuality {
		t.Fatalf("expected a password-quality error for low entropy, got %v", err)
	}
	if len(got.Feedback) == 0 {
		t.Fatalf("expected feedback to carry the estimator's suggestions")
	}
}

func TestEvaluateRejectsBadListedPassword(t *testing.T) {
	cfg := Config{BadWords: map[string]struct{}{"correcthorsebattery": {}}}
	err := Evaluate(cfg, fixedEstimator{Entropy{Score: 4}}, "CorrectHorseBattery", nil)
	if cserrors.CodeOf(err) != cserrors.CodePasswordQuality {
		t.Fatalf("expected the bad-listed password to be rejected, got %v", err)
	}
}

func TestEvaluateAcceptsGoodPassword(t *testing.T) {
	err := Evaluate(Config{}, fixedEstimator{Entropy{Score: 4}}, "areasonablylongpassphrase", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestLoadBadList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "badlist.yaml")
	if err := os.WriteFile(path, []byte("words:\n  - password1\n  - qwerty123\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	words, err := LoadBadList(path)
	if err != nil {
		t.Fatalf("LoadBadList: %v", err)
	}
	if _, ok := words["password1"]; !ok {
		t.Fatalf("expected bad list to contain password1")
	}
}

func TestLoadBadListMissingFile(t *testing.T) {
	_, err := LoadBadList("/nonexistent/path.yaml")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}
