package query

import (
	"net/url"
	"strings"

	"github.com/sitebook/gateway/internal/enum"
)

// Key identifies one cached query: entity type, cache scope, operation and
// the operation's parts (site and filters for lists, id and site for details).
type Key struct {
	Entity string
	Scope  string
	Op     string
	Parts  []string
}

func (k Key) String() string {
	parts := append([]string{k.Entity, k.Scope, k.Op}, k.Parts...)
	return strings.Join(parts, ":")
}

func ListKey(entity, scope, site string, filters url.Values) Key {
	return Key{Entity: entity, Scope: scope, Op: enum.OpList, Parts: []string{site, filters.Encode()}}
}

// DetailKey includes the selected site; upstream detail reads are scoped by
// the site_id header.
func DetailKey(entity, scope, site, id string) Key {
	return Key{Entity: entity, Scope: scope, Op: enum.OpDetail, Parts: []string{id, site}}
}

// DetailPrefix matches the cached details of id under every site.
func DetailPrefix(entity, scope, id string) string {
	return Key{Entity: entity, Scope: scope, Op: enum.OpDetail, Parts: []string{id}}.String() + ":"
}

// ListPrefix matches every cached list of entity within scope.
func ListPrefix(entity, scope string) string {
	return Key{Entity: entity, Scope: scope, Op: enum.OpList}.String() + ":"
}
