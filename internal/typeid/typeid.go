package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixUser     = "user"
	PrefixPoster   = "poster"
	PrefixSnapshot = "snap"
	PrefixOp       = "op"
	PrefixEvent    = "evt"
	PrefixPeriod   = "per"
	PrefixAsset    = "asset"
	PrefixExport   = "exp"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewUserID() string     { return New(PrefixUser) }
func NewPosterID() string   { return New(PrefixPoster) }
func NewSnapshotID() string { return New(PrefixSnapshot) }
func NewOpID() string       { return New(PrefixOp) }
func NewEventID() string    { return New(PrefixEvent) }
func NewPeriodID() string   { return New(PrefixPeriod) }
func NewAssetID() string    { return New(PrefixAsset) }
func NewExportID() string   { return New(PrefixExport) }

// Validate checks that id parses as a typeid carrying expectedPrefix.
// Item ids loaded from older documents are plain UUIDs and are never validated.
func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
