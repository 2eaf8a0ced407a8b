package vouchercode

import (
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"time"

	"github.com/nabezky/VoucherBox/internal/models"
	"github.com/pkg/errors"
)

// Формат: Season(1) + Region(2) + Period(1) + Random(8) = 12 цифр.
const (
	codeLength = 12

	seasonEpochYear = 2023
	seasonCycle     = 9

	PeriodSeasonal = 0
	PeriodThreeDay = 3

	threeDayValidity = 3 * 24 * time.Hour
)

var ErrInvalidFormat = errors.New("voucher code must be exactly 12 digits")

type Rand interface {
	Intn(n int) int
}

// CurrentSeasonNumber returns the cyclic season number for the ski season
// containing t: ((year-2023) mod 9) + 1, always in [1,9].
func CurrentSeasonNumber(t time.Time) int {
	d := (t.Year() - seasonEpochYear) % seasonCycle
	if d < 0 {
		d += seasonCycle
	}
	return d + 1
}

// IsValidFormat reports whether code is exactly 12 decimal digits.
func IsValidFormat(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// SeasonEnd returns April 30 that closes the ski season containing now.
// October through December belong to the season ending next spring.
func SeasonEnd(now time.Time) time.Time {
	year := now.Year()
	if now.Month() >= time.October {
		year++
	}
	return time.Date(year, time.April, 30, 0, 0, 0, 0, now.Location())
}

// Decode splits a voucher code into its positional fields and computes the
// expiration implied by the period digit relative to now.
func Decode(code string, now time.Time) (models.VoucherInfo, error) {
	if !IsValidFormat(code) {
		return models.VoucherInfo{}, ErrInvalidFormat
	}

	season, err := strconv.Atoi(code[0:1])
	if err != nil {
		return models.VoucherInfo{}, ErrInvalidFormat
	}
	region, err := strconv.Atoi(code[1:3])
	if err != nil {
		return models.VoucherInfo{}, ErrInvalidFormat
	}
	period, err := strconv.Atoi(code[3:4])
	if err != nil {
		return models.VoucherInfo{}, ErrInvalidFormat
	}

	info := models.VoucherInfo{
		Season: season,
		Region: region,
		Period: period,
		Random: code[4:],
	}

	switch period {
	case PeriodSeasonal:
		e := SeasonEnd(now)
		info.Expires = &e
		info.Type = models.VoucherTypeSeasonal
	case PeriodThreeDay:
		e := now.Add(threeDayValidity)
		info.Expires = &e
		info.Type = models.VoucherType3Day
	default:
		// Неизвестный класс: срок действия не определён.
		info.Type = models.VoucherTypeUnknown
	}

	return info, nil
}

// Build assembles a voucher code for the given region and period at now.
// The region must fit the two-digit field; values outside 1..99 are rejected
// instead of silently overflowing into the neighbouring digits.
func Build(regionID, period int, now time.Time, r Rand) (string, error) {
	if regionID < 1 || regionID > 99 {
		return "", errors.Errorf("region id %d out of range 1..99", regionID)
	}
	if period < 0 || period > 9 {
		return "", errors.Errorf("period %d is not a single digit", period)
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return fmt.Sprintf("%d%02d%d%08d", CurrentSeasonNumber(now), regionID, period, r.Intn(100000000)), nil
}

// MapAccessURL builds the map page URL for a voucher. Scheme, host, port,
// path and any pre-existing query parameters of the configured map URL are
// preserved; voucher and email always win over same-named parameters.
func MapAccessURL(configuredMapURL, voucher, email string, extra url.Values) (string, error) {
	u, err := url.Parse(configuredMapURL)
	if err != nil {
		return "", errors.Wrap(err, "parse map url")
	}

	q := u.Query()
	for k, vs := range extra {
		q.Del(k)
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("voucher", voucher)
	q.Set("email", email)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
