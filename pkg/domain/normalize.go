package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FeedDateLayout is the fixed textual date convention of the feed.
const FeedDateLayout = "02/01/2006"

// Defaults applied by normalization instead of failing the row.
const (
	DefaultDiscount         = 15
	DefaultMerchantCategory = "Uncategorized"
)

// Error constants and variables
const (
	ErrMsgMissingColumn = "missing required column"
	ErrMsgInvalidDate   = "invalid date"
)

var (
	ErrMissingColumn = errors.New(ErrMsgMissingColumn)
	ErrInvalidDate   = errors.New(ErrMsgInvalidDate)
)

// RequiredColumns must carry a non-empty value for a row to normalize.
var RequiredColumns = []string{
	ColShop,
	ColAddress,
	ColTitle,
	ColDescription,
	ColStartDate,
	ColEndDate,
	ColCategory,
}

// Normalize converts a raw feed row into its typed form. It is pure and safe
// for concurrent use. Date columns must parse under FeedDateLayout; a value
// that does not match the pattern or names an impossible calendar date fails
// the row. Discount and merchant category fall back to defaults instead of
// failing; phone, image URL and external URL pass through unset.
func Normalize(row RawRow) (*NormalizedRow, error) {
	vals := make(map[string]string, len(row))
	for k, v := range row {
		vals[k] = strings.TrimSpace(v)
	}

	for _, col := range RequiredColumns {
		if vals[col] == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	start, err := parseFeedDate(vals[ColStartDate])
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrInvalidDate, ColStartDate, vals[ColStartDate])
	}
	end, err := parseFeedDate(vals[ColEndDate])
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrInvalidDate, ColEndDate, vals[ColEndDate])
	}

	discount := DefaultDiscount
	if d, err := strconv.Atoi(vals[ColDiscount]); err == nil {
		discount = d
	}

	merchantCategory := vals[ColShopCategory]
	if merchantCategory == "" {
		merchantCategory = vals[ColCategory]
	}
	if merchantCategory == "" {
		merchantCategory = DefaultMerchantCategory
	}

	return &NormalizedRow{
		MerchantName:     vals[ColShop],
		MerchantAddress:  vals[ColAddress],
		MerchantPhone:    vals[ColPhone],
		MerchantCategory: merchantCategory,
		OfferTitle:       vals[ColTitle],
		OfferDescription: vals[ColDescription],
		OfferImageURL:    vals[ColImageURL],
		OfferDiscount:    discount,
		StartDate:        start,
		EndDate:          end,
		Category:         vals[ColCategory],
		OfferExternalURL: vals[ColOfferURL],
	}, nil
}

// parseFeedDate parses a DD/MM/YYYY value strictly: time.Parse normalizes
// out-of-range components (31/02 becomes 03/03), so the parsed date is
// formatted back and compared against the input.
func parseFeedDate(s string) (time.Time, error) {
	t, err := time.Parse(FeedDateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	if t.Format(FeedDateLayout) != s {
		return time.Time{}, fmt.Errorf("impossible calendar date %q", s)
	}
	return t, nil
}
