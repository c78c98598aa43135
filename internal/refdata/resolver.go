// Package refdata resolves the reference data a premises record points at:
// probation region, local authority area and postcode geocode.
package refdata

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitesurvey-cli/internal/facility"
	"github.com/sells-group/sitesurvey-cli/internal/survey"
	"github.com/sells-group/sitesurvey-cli/pkg/postcodes"
)

// Resolved is the reference data for one candidate premises.
type Resolved struct {
	Region             facility.ProbationRegion
	LocalAuthorityArea facility.LocalAuthorityArea
	Geocode            facility.Geocode
}

// Resolver looks up reference data by name. Any value that does not exist
// fails with ReferenceDataNotFound.
type Resolver struct {
	store     facility.ReferenceStore
	postcodes postcodes.Client
}

// NewResolver creates a Resolver over a reference store and postcode client.
func NewResolver(store facility.ReferenceStore, pc postcodes.Client) *Resolver {
	return &Resolver{store: store, postcodes: pc}
}

// ResolveRegion finds a probation region by name.
func (r *Resolver) ResolveRegion(ctx context.Context, name string) (*facility.ProbationRegion, error) {
	pr, err := r.store.FindProbationRegionByName(ctx, name)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: probation region %s", name)
	}
	if pr == nil {
		return nil, survey.ReferenceDataNotFound("probation region", name)
	}
	return pr, nil
}

// ResolveLocalAuthorityArea finds a local authority area by name.
func (r *Resolver) ResolveLocalAuthorityArea(ctx context.Context, name string) (*facility.LocalAuthorityArea, error) {
	la, err := r.store.FindLocalAuthorityAreaByName(ctx, name)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: local authority area %s", name)
	}
	if la == nil {
		return nil, survey.ReferenceDataNotFound("local authority area", name)
	}
	return la, nil
}

// ResolvePostcodeGeocode returns the centroid of a postcode.
func (r *Resolver) ResolvePostcodeGeocode(ctx context.Context, postcode string) (*facility.Geocode, error) {
	res, err := r.postcodes.Lookup(ctx, postcode)
	if err != nil {
		if errors.Is(err, postcodes.ErrNotFound) {
			return nil, survey.ReferenceDataNotFound("postcode", postcode)
		}
		return nil, eris.Wrapf(err, "refdata: postcode %s", postcode)
	}
	return &facility.Geocode{Latitude: res.Latitude, Longitude: res.Longitude}, nil
}

// Resolve looks up everything a premises needs, stopping at the first miss.
func (r *Resolver) Resolve(ctx context.Context, region, localAuthorityArea, postcode string) (*Resolved, error) {
	pr, err := r.ResolveRegion(ctx, region)
	if err != nil {
		return nil, err
	}
	la, err := r.ResolveLocalAuthorityArea(ctx, localAuthorityArea)
	if err != nil {
		return nil, err
	}
	geo, err := r.ResolvePostcodeGeocode(ctx, postcode)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("reference data resolved",
		zap.String("region", pr.Name),
		zap.String("local_authority_area", la.Identifier),
		zap.String("postcode", postcode),
	)
	return &Resolved{Region: *pr, LocalAuthorityArea: *la, Geocode: *geo}, nil
}
