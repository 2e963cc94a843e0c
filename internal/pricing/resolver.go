package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/gyeh/billcheck/internal/billing"
	"github.com/gyeh/billcheck/internal/cache"
	"github.com/gyeh/billcheck/internal/cms"
	"github.com/gyeh/billcheck/internal/match"
)

// Cache operation names. Bump combinedOp when CombinedPricing changes shape.
const (
	physicianOp = "pfs"
	facilityOp  = "opps_apc"
	drugOp      = "drug"
	combinedOp  = "combined_v3"
)

const (
	physicianPageSize = 500
	facilityPageSize  = 500
	drugPageSize      = 10
)

// RevenueCodeNote marks revenue codes in batch results.
const RevenueCodeNote = "Revenue code - not in HCPCS dataset"

// Crosswalk maps recently retired drug codes to the code the dataset still
// carries.
var Crosswalk = map[string]string{
	"J2003": "J2001", // lidocaine HCl injection
	"J2004": "J2001", // lidocaine with epinephrine
}

// IsDrugCode reports whether a code is routed to the drug dataset.
func IsDrugCode(code string) bool {
	if code == "" {
		return false
	}
	switch code[0] {
	case 'J', 'j', 'Q', 'q':
		return true
	}
	return false
}

// Resolver looks up reference prices through a Querier, caching results in
// a Store. Lookup failures are logged and reported as "no data"; no method
// returns an error.
type Resolver struct {
	Source cms.Querier
	Cache  cache.Store
	Logger zerolog.Logger

	now   func() time.Time
	group singleflight.Group
}

// NewResolver builds a Resolver. A nil store disables caching.
func NewResolver(src cms.Querier, store cache.Store, logger zerolog.Logger) *Resolver {
	if store == nil {
		store = cache.Nop{}
	}
	return &Resolver{Source: src, Cache: store, Logger: logger}
}

func (r *Resolver) stamp() time.Time {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	return now().UTC().Truncate(time.Second)
}

// PhysicianFee aggregates the professional-fee dataset for a HCPCS/CPT code.
func (r *Resolver) PhysicianFee(ctx context.Context, code string) *PhysicianFee {
	code = NormalizeCode(code)
	return cachedLookup(ctx, r, cache.Key(physicianOp, code), func() *PhysicianFee {
		records := r.query(ctx, cms.PhysicianServices, cms.FieldHCPCSCode, code, physicianPageSize)
		return aggregatePhysician(code, records, r.stamp())
	})
}

// FacilityFee aggregates the outpatient dataset for an APC code.
func (r *Resolver) FacilityFee(ctx context.Context, apc string) *FacilityFee {
	apc = strings.TrimSpace(apc)
	return cachedLookup(ctx, r, cache.Key(facilityOp, apc), func() *FacilityFee {
		records := r.query(ctx, cms.OutpatientServices, cms.FieldAPCCode, apc, facilityPageSize)
		return aggregateFacility(apc, records, r.stamp())
	})
}

// DrugPricing looks up Part B drug spending. A miss on a crosswalked code is
// retried once under its predecessor.
func (r *Resolver) DrugPricing(ctx context.Context, code string) *DrugPricing {
	code = NormalizeCode(code)
	return cachedLookup(ctx, r, cache.Key(drugOp, code), func() *DrugPricing {
		records := r.query(ctx, cms.PartBDrugs, cms.FieldHCPCSCode, code, drugPageSize)
		if len(records) == 0 {
			if old, ok := Crosswalk[code]; ok {
				r.Logger.Info().Str("code", code).Str("crosswalk", old).Msg("code not found, trying crosswalk")
				records = r.query(ctx, cms.PartBDrugs, cms.FieldHCPCSCode, old, drugPageSize)
			}
		}
		return drugFromRecords(code, records, r.stamp())
	})
}

// Combined resolves every applicable source for a code. When billDesc is
// non-empty the result is validated against it and never cached, since the
// reliability verdict depends on the bill.
func (r *Resolver) Combined(ctx context.Context, code, billDesc string) *CombinedPricing {
	code = NormalizeCode(code)
	billDesc = strings.TrimSpace(billDesc)
	validate := billDesc != ""
	key := cache.Key(combinedOp, code)

	if !validate {
		var cached CombinedPricing
		if r.readCache(ctx, key, &cached) {
			return &cached
		}
	}

	result := &CombinedPricing{Code: code, CachedAt: r.stamp()}
	if IsDrugCode(code) {
		result.Drug = r.DrugPricing(ctx, code)
	} else {
		result.Physician = r.PhysicianFee(ctx, code)
	}
	result.HasData = result.Physician != nil || result.Drug != nil

	if refDesc := result.validationDescription(); validate && refDesc != "" {
		m := match.Compare(billDesc, refDesc)
		result.DescriptionMatch = &m
		if m.Type == match.CategoryMismatch {
			r.Logger.Warn().
				Str("code", code).
				Str("bill", billDesc).
				Str("reference", refDesc).
				Str("reason", m.Reason).
				Msg("description mismatch")
		}
	}

	if result.HasData {
		if result.DescriptionMatch == nil || result.DescriptionMatch.Type.Reliable() {
			result.HasReliableData = true
		} else {
			r.Logger.Info().Str("code", code).Msg("marking reference data as unreliable due to description mismatch")
		}
	}

	if result.HasData && !validate {
		r.writeCache(ctx, key, result)
	}
	return result
}

// CodeDescription pairs a billed code with the bill's description of it.
type CodeDescription struct {
	Code        string
	Description string
}

// PricingForCodes resolves each pair in order. Revenue codes are not in the
// per-procedure datasets and are reported without a lookup. Later pairs for
// the same code replace earlier ones.
func (r *Resolver) PricingForCodes(ctx context.Context, pairs []CodeDescription) map[string]*CombinedPricing {
	results := make(map[string]*CombinedPricing, len(pairs))
	for _, p := range pairs {
		code := NormalizeCode(p.Code)
		if code == "" {
			continue
		}
		if billing.IsRevenueCode(code) {
			r.Logger.Info().Str("code", code).Msg("skipping revenue code")
			results[code] = &CombinedPricing{Code: code, Note: RevenueCodeNote}
			continue
		}
		results[code] = r.Combined(ctx, code, p.Description)
	}
	return results
}

func (r *Resolver) query(ctx context.Context, ds cms.Dataset, field, value string, size int) []cms.Record {
	if r.Source == nil || value == "" {
		return nil
	}
	records, err := r.Source.Query(ctx, cms.Query{
		Dataset: ds,
		Filters: map[string]string{field: value},
		Size:    size,
	})
	if err != nil {
		r.Logger.Warn().Err(err).Str("dataset", ds.Name).Str("code", value).Msg("reference lookup failed")
		return nil
	}
	return records
}

// cachedLookup serves key from the cache, or runs fetch once across
// concurrent callers and caches a non-nil result.
func cachedLookup[T any](ctx context.Context, r *Resolver, key string, fetch func() *T) *T {
	v, _, _ := r.group.Do(key, func() (any, error) {
		var cached T
		if r.readCache(ctx, key, &cached) {
			return &cached, nil
		}
		result := fetch()
		if result != nil {
			r.writeCache(ctx, key, result)
		}
		return result, nil
	})
	result, _ := v.(*T)
	return result
}

func (r *Resolver) readCache(ctx context.Context, key string, v any) bool {
	data, err := r.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			r.Logger.Warn().Err(err).Str("key", shortKey(key)).Msg("failed to read cache")
		} else {
			r.Logger.Debug().Str("key", shortKey(key)).Msg("cache miss")
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		r.Logger.Warn().Err(err).Str("key", shortKey(key)).Msg("discarding unreadable cache entry")
		return false
	}
	r.Logger.Debug().Str("key", shortKey(key)).Msg("cache hit")
	return true
}

func (r *Resolver) writeCache(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		r.Logger.Warn().Err(err).Msg("failed to encode cache entry")
		return
	}
	if err := r.Cache.Put(ctx, key, data); err != nil {
		r.Logger.Warn().Err(err).Str("key", shortKey(key)).Msg("failed to write cache")
		return
	}
	r.Logger.Debug().Str("key", shortKey(key)).Msg("cached data")
}

// NormalizeCode is the form codes take as keys in resolver results.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

func aggregatePhysician(code string, records []cms.Record, at time.Time) *PhysicianFee {
	var payments, charges []float64
	desc := ""
	for _, rec := range records {
		if v, ok := rec.Float(cms.FieldAvgPayment); ok && v > 0 {
			payments = append(payments, v)
		}
		if v, ok := rec.Float(cms.FieldAvgSubmittedCharge); ok && v > 0 {
			charges = append(charges, v)
		}
		if desc == "" {
			desc = strings.TrimSpace(rec[cms.FieldHCPCSDesc])
		}
	}
	stats := newPaymentStats(payments)
	if stats == nil {
		return nil
	}
	if desc == "" {
		desc = fmt.Sprintf("Service %s", code)
	}
	return &PhysicianFee{
		Code:             code,
		Description:      desc,
		MedicarePayment:  *stats,
		SubmittedCharges: newPaymentStats(charges),
		DataSource:       SourcePhysician,
		CachedAt:         at,
	}
}

func aggregateFacility(code string, records []cms.Record, at time.Time) *FacilityFee {
	var payments, charges []float64
	desc := ""
	for _, rec := range records {
		if v, ok := rec.Float(cms.FieldAvgPayment); ok && v > 0 {
			payments = append(payments, v)
		}
		if v, ok := rec.Float(cms.FieldAvgTotalSubmitted); ok && v > 0 {
			charges = append(charges, v)
		}
		if desc == "" {
			desc = strings.TrimSpace(rec[cms.FieldAPCDesc])
		}
	}
	stats := newPaymentStats(payments)
	if stats == nil {
		return nil
	}
	if desc == "" {
		desc = fmt.Sprintf("Service %s", code)
	}
	return &FacilityFee{
		Code:            code,
		Description:     desc,
		FacilityPayment: *stats,
		FacilityCharges: newPaymentStats(charges),
		DataSource:      SourceFacility,
		CachedAt:        at,
	}
}

// drugFromRecords uses the first row; the dataset holds one row per drug.
func drugFromRecords(code string, records []cms.Record, at time.Time) *DrugPricing {
	if len(records) == 0 {
		return nil
	}
	rec := records[0]
	asp := positive(rec, cms.FieldASPPrice)
	perUnit := positive(rec, cms.FieldSpendingPerUnit)
	if asp == nil && perUnit == nil {
		return nil
	}
	return &DrugPricing{
		Code:               code,
		OriginalCode:       rec[cms.FieldHCPCSCode],
		Description:        strings.TrimSpace(rec[cms.FieldHCPCSDesc]),
		BrandName:          strings.TrimSpace(rec[cms.FieldBrandName]),
		GenericName:        strings.TrimSpace(rec[cms.FieldGenericName]),
		ASPPrice:           asp,
		AvgSpendingPerUnit: perUnit,
		TotalClaims:        optional(rec, cms.FieldTotalClaims),
		TotalBeneficiaries: optional(rec, cms.FieldTotalBeneficiaries),
		DataSource:         SourceDrug,
		CachedAt:           at,
	}
}

func positive(rec cms.Record, field string) *float64 {
	if v, ok := rec.Float(field); ok && v > 0 {
		return &v
	}
	return nil
}

func optional(rec cms.Record, field string) *float64 {
	if v, ok := rec.Float(field); ok {
		return &v
	}
	return nil
}
