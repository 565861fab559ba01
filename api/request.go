package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/elnormous/contenttype"
	"github.com/go-chi/chi/v5"

	"github.com/ggoodman/casting-api/storage"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

const maxBodyBytes = 1 << 20

var (
	errUnsupportedMediaType = errors.New("content-type must be application/json")
	errEmptyBody            = errors.New("request body must be a non-empty JSON object")
	errBodyTooLarge         = errors.New("request body too large")
)

// decodeObject reads the body as a JSON object of raw members. It enforces
// the content type and rejects empty objects.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, error) {
	if r.Header.Get("Content-Type") == "" {
		return nil, errUnsupportedMediaType
	}
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		return nil, errUnsupportedMediaType
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		if mbe := (*http.MaxBytesError)(nil); errors.As(err, &mbe) {
			return nil, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, mbe.Limit)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, errors.New("request body must be a JSON object")
	}
	if len(obj) == 0 {
		return nil, errEmptyBody
	}
	return obj, nil
}

// field decodes obj[name] into T. It returns nil when the member is absent
// and an error when it is null or of the wrong JSON type.
func field[T any](obj map[string]json.RawMessage, name, kind string) (*T, error) {
	raw, ok := obj[name]
	if !ok {
		return nil, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("%s must not be null", name)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%s must be %s", name, kind)
	}
	return &v, nil
}

func nonEmptyString(obj map[string]json.RawMessage, name string) (*string, error) {
	s, err := field[string](obj, name, "a string")
	if err != nil || s == nil {
		return s, err
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil, fmt.Errorf("%s must not be empty", name)
	}
	return &trimmed, nil
}

func decodeMoviePatch(obj map[string]json.RawMessage) (storage.MoviePatch, error) {
	var p storage.MoviePatch
	title, err := nonEmptyString(obj, "title")
	if err != nil {
		return p, err
	}
	p.Title = title
	rd, err := nonEmptyString(obj, "release_date")
	if err != nil {
		return p, err
	}
	if rd != nil {
		t, err := parseReleaseDate(*rd)
		if err != nil {
			return p, err
		}
		p.ReleaseDate = &t
	}
	if p.Empty() {
		return p, errors.New("at least one of title, release_date is required")
	}
	return p, nil
}

func decodeActorPatch(obj map[string]json.RawMessage) (storage.ActorPatch, error) {
	var p storage.ActorPatch
	name, err := nonEmptyString(obj, "name")
	if err != nil {
		return p, err
	}
	p.Name = name
	age, err := field[int](obj, "age", "an integer")
	if err != nil {
		return p, err
	}
	if age != nil && *age < 0 {
		return p, errors.New("age must not be negative")
	}
	p.Age = age
	gender, err := nonEmptyString(obj, "gender")
	if err != nil {
		return p, err
	}
	p.Gender = gender
	if p.Empty() {
		return p, errors.New("at least one of name, age, gender is required")
	}
	return p, nil
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("id %q must be a positive integer", chi.URLParam(r, "id"))
	}
	return id, nil
}

// pageRequest parses ?page and ?size. Absent values take the defaults;
// size is capped at storage.MaxPageSize.
func pageRequest(r *http.Request) (storage.PageRequest, error) {
	req := storage.PageRequest{Page: 1, Size: storage.DefaultPageSize}
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &req.Page}, {"size", &req.Size}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, fmt.Errorf("%s must be a positive integer", p.name)
		}
		*p.dst = n
	}
	return req.Normalize(), nil
}

func errMissingFields(names ...string) error {
	return fmt.Errorf("missing required field; %s are all required", strings.Join(names, ", "))
}
