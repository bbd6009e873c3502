package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/ashureev/linguapolis/internal/domain"
)

// ErrMalformed reports a catalog document whose shape cannot be used.
var ErrMalformed = errors.New("catalog: malformed document")

const (
	defaultCharacterName = "Unnamed"
	maxDocumentSize      = 8 << 20
)

// rawCharacter mirrors every field spelling seen in catalog documents.
type rawCharacter struct {
	ID              json.RawMessage `json:"id"`
	Name            *string         `json:"name"`
	Description     *string         `json:"description"`
	AvatarKey       *string         `json:"avatarKey"`
	Avatar          *string         `json:"avatar"`
	StartingStats   *domain.Stats   `json:"startingStats"`
	PreferredChunks []string        `json:"preferredChunks"`
}

type rawQuest struct {
	ID             json.RawMessage `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	RequiredChunks []string        `json:"requiredChunks"`
	Reward         domain.Reward   `json:"reward"`
}

type rawDocument struct {
	Characters json.RawMessage `json:"characters"`
	Quests     json.RawMessage `json:"quests"`
}

// Load reads a catalog from a file path or an http(s) URL.
func Load(ctx context.Context, client *http.Client, source string) (*Catalog, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetch(ctx, client, source)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", source, err)
	}
	defer func() { _ = f.Close() }()

	cat, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", source, err)
	}
	return cat, nil
}

func fetch(ctx context.Context, client *http.Client, url string) (*Catalog, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch catalog %s: HTTP %d", url, resp.StatusCode)
	}

	cat, err := Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", url, err)
	}
	return cat, nil
}

// Parse decodes a catalog document. The document is either a bare array of
// characters or an object with a characters array and optional quests,
// given as an array or as an object keyed by quest id.
func Parse(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	data = bytes.TrimSpace(data)

	var charsJSON, questsJSON json.RawMessage
	switch {
	case len(data) > 0 && data[0] == '[':
		charsJSON = data
	case len(data) > 0 && data[0] == '{':
		var doc rawDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		charsJSON, questsJSON = doc.Characters, doc.Quests
	default:
		return nil, fmt.Errorf("%w: expected an array or an object with characters", ErrMalformed)
	}

	var rawChars []rawCharacter
	if !isArray(charsJSON) {
		return nil, fmt.Errorf("%w: characters must be an array", ErrMalformed)
	}
	if err := json.Unmarshal(charsJSON, &rawChars); err != nil {
		return nil, fmt.Errorf("%w: characters: %v", ErrMalformed, err)
	}

	characters := make([]domain.Character, 0, len(rawChars))
	seen := make(map[string]bool, len(rawChars))
	for i, rc := range rawChars {
		ch, err := normalizeCharacter(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: character %d: %v", ErrMalformed, i, err)
		}
		if seen[ch.ID] {
			return nil, fmt.Errorf("%w: duplicate character id %q", ErrMalformed, ch.ID)
		}
		seen[ch.ID] = true
		characters = append(characters, ch)
	}

	quests, err := parseQuests(questsJSON)
	if err != nil {
		return nil, err
	}

	return newCatalog(characters, quests), nil
}

func parseQuests(data json.RawMessage) ([]domain.Quest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []domain.Quest{}, nil
	}

	var raws []rawQuest
	var keys []string
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("%w: quests: %v", ErrMalformed, err)
		}
		keys = make([]string, len(raws))
	case '{':
		byKey := map[string]rawQuest{}
		if err := json.Unmarshal(data, &byKey); err != nil {
			return nil, fmt.Errorf("%w: quests: %v", ErrMalformed, err)
		}
		// JSON objects carry no order; sort keys so listing is stable.
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			raws = append(raws, byKey[k])
		}
	default:
		return nil, fmt.Errorf("%w: quests must be an array or an object", ErrMalformed)
	}

	quests := make([]domain.Quest, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for i, rq := range raws {
		id, err := idString(rq.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: quest %d: %v", ErrMalformed, i, err)
		}
		if id == "" {
			id = strings.TrimSpace(keys[i])
		}
		if id == "" {
			return nil, fmt.Errorf("%w: quest %d: missing id", ErrMalformed, i)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate quest id %q", ErrMalformed, id)
		}
		seen[id] = true
		quests = append(quests, domain.Quest{
			ID:             id,
			Title:          strings.TrimSpace(rq.Title),
			Description:    strings.TrimSpace(rq.Description),
			RequiredChunks: nonNil(rq.RequiredChunks),
			Reward:         rq.Reward,
		})
	}
	return quests, nil
}

func normalizeCharacter(rc rawCharacter) (domain.Character, error) {
	id, err := idString(rc.ID)
	if err != nil {
		return domain.Character{}, err
	}
	if id == "" {
		return domain.Character{}, errors.New("missing id")
	}

	name := strings.TrimSpace(deref(rc.Name))
	if name == "" {
		name = defaultCharacterName
	}

	var stats domain.Stats
	if rc.StartingStats != nil {
		stats = rc.StartingStats.Clamped()
	}

	return domain.Character{
		ID:              id,
		Name:            name,
		Description:     strings.TrimSpace(deref(rc.Description)),
		AvatarKey:       avatarKey(rc, id),
		StartingStats:   stats,
		PreferredChunks: nonNil(rc.PreferredChunks),
	}, nil
}

// avatarKey prefers an explicit avatarKey, then the base name of a legacy
// avatar path (assets/avatars/tech_01.mp4 -> tech_01), then the id.
func avatarKey(rc rawCharacter, id string) string {
	if k := strings.TrimSpace(deref(rc.AvatarKey)); k != "" {
		return k
	}
	if p := strings.TrimSpace(deref(rc.Avatar)); p != "" {
		base := path.Base(strings.ReplaceAll(p, "\\", "/"))
		if k := strings.TrimSuffix(base, path.Ext(base)); k != "" && k != "." && k != "/" {
			return k
		}
	}
	return id
}

// idString accepts ids written as JSON strings or numbers.
func idString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("id: %w", err)
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("id must be a string or number")
	}
	return n.String(), nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
