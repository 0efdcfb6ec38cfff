// Package projects exposes project memberships as flat records, pivot tables
// and spreadsheet exports.
package projects

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rpattn/projectanalysis/internal/domain"
	"github.com/rpattn/projectanalysis/internal/flatten"
	"github.com/rpattn/projectanalysis/internal/logging"
	"github.com/rpattn/projectanalysis/internal/pivot"
	"github.com/rpattn/projectanalysis/internal/upstream"
)

// Mapping flattens a project into one record per group membership. The
// spreadsheet template's columns follow this order.
var Mapping = domain.MustPathMapping(
	domain.ColumnPath{Column: "projectID", Path: "id"},
	domain.ColumnPath{Column: "projectName", Path: "name"},
	domain.ColumnPath{Column: "validity", Path: "valid"},
	domain.ColumnPath{Column: "groupID", Path: "group.id"},
	domain.ColumnPath{Column: "groupName", Path: "group.name"},
	domain.ColumnPath{Column: "userID", Path: "group.memberships.user.id"},
	domain.ColumnPath{Column: "userFullname", Path: "group.memberships.user.fullname"},
)

// Pivot keys: how many valid-flagged memberships each user has per project.
const (
	PivotRowKey    = "userFullname"
	PivotColumnKey = "projectName"
	PivotValueKey  = "validity"
)

// TreeResolver fetches the project tree for a where filter.
type TreeResolver interface {
	ResolveTree(ctx context.Context, variables map[string]any, cookies []*http.Cookie) (upstream.Result, error)
}

type Service struct {
	resolver TreeResolver
	mapping  domain.PathMapping
}

func NewService(resolver TreeResolver) *Service {
	return &Service{resolver: resolver, mapping: Mapping}
}

func variables(where map[string]any) map[string]any {
	vars := map[string]any{}
	if where != nil {
		vars[upstream.FilterVariable] = where
	}
	return vars
}

// ResolveJSON returns the project tree as received from upstream.
func (s *Service) ResolveJSON(ctx context.Context, where map[string]any, cookies []*http.Cookie) (json.RawMessage, error) {
	result, err := s.resolver.ResolveTree(ctx, variables(where), cookies)
	if err != nil {
		return nil, err
	}
	return result.Raw, nil
}

// ResolveFlat returns the project tree flattened with Mapping.
func (s *Service) ResolveFlat(ctx context.Context, where map[string]any, cookies []*http.Cookie) (domain.RecordSet, error) {
	result, err := s.resolver.ResolveTree(ctx, variables(where), cookies)
	if err != nil {
		return domain.RecordSet{}, err
	}
	set := flatten.Collect(result.Tree, s.mapping)
	logging.Ctx(ctx).Debug().
		Int("projects", len(result.Tree.Items())).
		Int("records", set.Len()).
		Msg("[PROJECTS] flattened")
	return set, nil
}

// ResolvePivot counts valid-flagged memberships per user and project.
// Memberships whose validity is null are not counted.
func (s *Service) ResolvePivot(ctx context.Context, where map[string]any, cookies []*http.Cookie) (*pivot.Table, error) {
	set, err := s.ResolveFlat(ctx, where, cookies)
	if err != nil {
		return nil, err
	}
	return pivot.Pivot(set, PivotRowKey, []string{PivotColumnKey}, PivotValueKey,
		pivot.WithAggregate(pivot.CountNonNull))
}
