package fixtures

import (
	"os"
	"path/filepath"
	"testing"

	"game-score-engine/internal/domain"
	"game-score-engine/internal/games"
)

const sample = `
documents:
  users/u1:
    username: alice
    followersCount: 12
  games/t1:
    gameTypeId: Trivia
    custom:
      mode: fixed
trivia:
  - gameId: t1
    questionId: q1
    salt: s1
    answers: [Paris, paris france]
`

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestDocumentsHashTriviaAnswers(t *testing.T) {
	f, err := Load(writeFixture(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	hasher := games.NewHMACHasher("secret")
	docs, err := f.Flatten(hasher)
	if err != nil {
		t.Fatalf("documents: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	if docs[0].Path != "games/t1" || docs[1].Path != domain.QuestionPath("t1", "q1") || docs[2].Path != "users/u1" {
		t.Fatalf("unexpected order %v %v %v", docs[0].Path, docs[1].Path, docs[2].Path)
	}

	question := docs[1].Data
	want, _ := hasher.Hash("q1", "Paris", "s1")
	if question["correctHash"] != want {
		t.Fatalf("expected hashed answer, got %v", question["correctHash"])
	}
	hashes, _ := question["correctHashes"].([]any)
	if len(hashes) != 2 {
		t.Fatalf("expected both answers hashed, got %v", question["correctHashes"])
	}
	for _, v := range question {
		if v == "Paris" {
			t.Fatalf("plain-text answer leaked into %v", question)
		}
	}
	if docs[2].Data["followersCount"] != float64(12) {
		t.Fatalf("expected numeric field to survive, got %v", docs[2].Data)
	}
}

func TestDocumentsRejectBadInput(t *testing.T) {
	hasher := games.NewHMACHasher("secret")
	if _, err := (File{Documents: map[string]map[string]any{"users": {}}}).Flatten(hasher); err == nil {
		t.Fatalf("expected collection path to be rejected")
	}
	if _, err := (File{Trivia: []TriviaFixture{{GameID: "t1", QuestionID: "q1"}}}).Flatten(hasher); err == nil {
		t.Fatalf("expected question without answers to be rejected")
	}
	if _, err := (File{Trivia: []TriviaFixture{{GameID: "t1", QuestionID: "q1", Answers: []string{"x"}}}}).Flatten(games.NewHMACHasher("")); err == nil {
		t.Fatalf("expected missing secret to fail")
	}
}
