// Package mid parses and builds metadata identification strings.
//
// A metadata identifier has the form
//
//	MID:<metadata class>[#<instance key>]
//
// An identifier without the delimiter names a kind of metadata and is used to
// locate the provider of that kind. An identifier carrying an instance key
// names one concrete metadata item. All functions are pure.
package mid

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Prefix starts every metadata identifier.
	Prefix = "MID:"
	// InstanceDelimiter separates the metadata class from the instance key.
	InstanceDelimiter = "#"
)

// ErrInvalid is returned when an identifier cannot be built from the given parts.
var ErrInvalid = errors.New("invalid metadata identifier")

// Blank reports whether s is empty or only whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// CreateClassIdentifier returns the class identifier for metadataClass.
func CreateClassIdentifier(metadataClass string) (string, error) {
	if Blank(metadataClass) || strings.Contains(metadataClass, InstanceDelimiter) {
		return "", fmt.Errorf("%w: class name %q", ErrInvalid, metadataClass)
	}
	return Prefix + metadataClass, nil
}

// CreateInstanceIdentifier returns the identifier of one instance of metadataClass.
func CreateInstanceIdentifier(metadataClass, instanceKey string) (string, error) {
	if Blank(instanceKey) {
		return "", fmt.Errorf("%w: blank instance key for class %q", ErrInvalid, metadataClass)
	}
	classID, err := CreateClassIdentifier(metadataClass)
	if err != nil {
		return "", err
	}
	return classID + InstanceDelimiter + instanceKey, nil
}

// MustClassIdentifier is like CreateClassIdentifier but panics on invalid input.
// It is intended for package-level declarations of provider types.
func MustClassIdentifier(metadataClass string) string {
	id, err := CreateClassIdentifier(metadataClass)
	if err != nil {
		panic(err)
	}
	return id
}

// split returns the class and instance portions of id. ok is false when id is
// not well formed.
func split(id string) (class, key string, hasKey, ok bool) {
	if !strings.HasPrefix(id, Prefix) {
		return "", "", false, false
	}
	rest := id[len(Prefix):]
	class, key, hasKey = strings.Cut(rest, InstanceDelimiter)
	if Blank(class) {
		return "", "", false, false
	}
	if hasKey && Blank(key) {
		return "", "", false, false
	}
	return class, key, hasKey, true
}

// IsWellFormed reports whether id is a class or instance identifier.
func IsWellFormed(id string) bool {
	_, _, _, ok := split(id)
	return ok
}

// IsClassIdentifier reports whether id identifies a metadata class.
func IsClassIdentifier(id string) bool {
	_, _, hasKey, ok := split(id)
	return ok && !hasKey
}

// IsInstanceIdentifier reports whether id identifies a metadata instance.
func IsInstanceIdentifier(id string) bool {
	_, _, hasKey, ok := split(id)
	return ok && hasKey
}

// IsResource reports whether id names a non-metadata resource, such as a
// file path. Resources may only appear as upstream dependencies.
func IsResource(id string) bool {
	return !Blank(id) && !strings.HasPrefix(id, Prefix)
}

// MetadataClass returns the class portion of a class or instance identifier,
// or "" when id is malformed.
func MetadataClass(id string) string {
	class, _, _, ok := split(id)
	if !ok {
		return ""
	}
	return class
}

// InstanceKey returns the instance key of an instance identifier, or "" for
// class identifiers and malformed input.
func InstanceKey(id string) string {
	_, key, hasKey, ok := split(id)
	if !ok || !hasKey {
		return ""
	}
	return key
}

// ClassIdentifierOf returns the class identifier for the class portion of id,
// or "" when id is malformed.
func ClassIdentifierOf(id string) string {
	class := MetadataClass(id)
	if class == "" {
		return ""
	}
	return Prefix + class
}
