package openapi

import (
	"context"
	"slices"
	"strings"

	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
)

// Paths returns the sorted path templates that declare an operation for
// method. An empty method or "ANY" matches every supported method.
func (s *Spec) Paths(ctx context.Context, method string) ([]string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	var paths []string
	if s.model.Model.Paths == nil || s.model.Model.Paths.PathItems == nil {
		return paths, nil
	}
	for path, item := range s.model.Model.Paths.PathItems.FromOldest() {
		if hasOperation(item, method) {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths, nil
}

func hasOperation(item *v3.PathItem, method string) bool {
	if item == nil {
		return false
	}
	ops := map[string]*v3.Operation{
		"GET":    item.Get,
		"POST":   item.Post,
		"PUT":    item.Put,
		"DELETE": item.Delete,
	}
	method = strings.ToUpper(method)
	if method == "" || method == "ANY" {
		for _, op := range ops {
			if op != nil {
				return true
			}
		}
		return false
	}
	return ops[method] != nil
}
