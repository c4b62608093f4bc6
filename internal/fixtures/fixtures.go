// Package fixtures loads seed documents from YAML.
package fixtures

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"game-score-engine/internal/docstore"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/games"
	"gopkg.in/yaml.v3"
)

// File is the on-disk fixture layout.
//
//	documents:
//	  users/u1: {username: alice, followersCount: 12}
//	trivia:
//	  - gameId: t1
//	    questionId: q1
//	    salt: s1
//	    answers: [Paris]
type File struct {
	Documents map[string]map[string]any `yaml:"documents"`
	Trivia    []TriviaFixture           `yaml:"trivia"`
}

// TriviaFixture names the plain-text answers of a question. They are hashed
// before storage and never persisted as written.
type TriviaFixture struct {
	GameID     string   `yaml:"gameId"`
	QuestionID string   `yaml:"questionId"`
	Salt       string   `yaml:"salt"`
	Answers    []string `yaml:"answers"`
}

// Document is one seed document keyed by its full path.
type Document struct {
	Path string
	Data map[string]any
}

// Load parses a fixture file.
func Load(path string) (File, error) {
	var f File
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return f, nil
}

// Flatten turns the file into path-ordered documents, hashing trivia
// answers with hasher.
func (f File) Flatten(hasher games.Hasher) ([]Document, error) {
	docs := make([]Document, 0, len(f.Documents)+len(f.Trivia))
	for path, data := range f.Documents {
		if !docstore.ValidPath(path) {
			return nil, fmt.Errorf("fixture %q is not a document path", path)
		}
		normalized, err := toMap(data)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", path, err)
		}
		docs = append(docs, Document{Path: path, Data: normalized})
	}

	for _, tf := range f.Trivia {
		q, err := tf.question(hasher)
		if err != nil {
			return nil, err
		}
		data, err := toMap(q)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{Path: domain.QuestionPath(tf.GameID, tf.QuestionID), Data: data})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

func (tf TriviaFixture) question(hasher games.Hasher) (domain.TriviaQuestion, error) {
	if tf.GameID == "" || tf.QuestionID == "" {
		return domain.TriviaQuestion{}, fmt.Errorf("trivia fixture needs gameId and questionId")
	}
	if len(tf.Answers) == 0 {
		return domain.TriviaQuestion{}, fmt.Errorf("trivia fixture %s/%s has no answers", tf.GameID, tf.QuestionID)
	}
	q := domain.TriviaQuestion{Salt: tf.Salt}
	for _, answer := range tf.Answers {
		h, err := hasher.Hash(tf.QuestionID, answer, tf.Salt)
		if err != nil {
			return domain.TriviaQuestion{}, err
		}
		q.CorrectHashes = append(q.CorrectHashes, h)
	}
	q.CorrectHash = q.CorrectHashes[0]
	return q, nil
}

// toMap round-trips through JSON so YAML and struct values share the
// document representation.
func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
