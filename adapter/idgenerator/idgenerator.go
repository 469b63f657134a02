// Package idgenerator contains the default [domain.IDGenerator]
// implementation. It generates object ids by default, and can be configured
// to generate UUIDs or random strings instead.
package idgenerator

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Format is the kind of identifier generated.
type Format uint8

// Supported identifier formats.
const (
	ObjectID Format = iota
	UUID
	String
)

// ParseFormat returns the format with the given name: objectid, uuid or
// string.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "objectid", "":
		return ObjectID, nil
	case "uuid":
		return UUID, nil
	case "string":
		return String, nil
	default:
		return 0, fmt.Errorf("unknown id format %q", name)
	}
}

// IDGenerator implements [domain.IDGenerator].
type IDGenerator struct {
	reader io.Reader
	format Format
	length int
}

// NewIDGenerator implements [domain.IDGenerator].
func NewIDGenerator(opts ...Option) domain.IDGenerator {
	i := IDGenerator{
		reader: rand.Reader,
		format: ObjectID,
		length: 16,
	}
	for _, opt := range opts {
		opt(&i)
	}
	return &i
}

// GenerateID implements [domain.IDGenerator].
func (i *IDGenerator) GenerateID() (any, error) {
	switch i.format {
	case UUID:
		u, err := uuid.NewRandomFromReader(i.reader)
		if err != nil {
			return nil, err
		}
		return bson.Binary{Subtype: bson.TypeBinaryUUID, Data: u[:]}, nil
	case String:
		return i.randomString(i.length)
	default:
		return bson.NewObjectID(), nil
	}
}

// randomString returns l base64 characters, skipping '+' and '/'.
func (i *IDGenerator) randomString(l int) (string, error) {
	buf := make([]byte, max(8, l*2))
	_, err := io.ReadFull(i.reader, buf)
	if err != nil {
		return "", err
	}

	dst := base64.StdEncoding.EncodeToString(buf)

	res := make([]byte, 0, l)
	for _, b := range []byte(dst) {
		switch b {
		case '+', '/', '=':
		default:
			res = append(res, b)
		}
		if len(res) == l {
			break
		}
	}

	return string(res), nil
}
