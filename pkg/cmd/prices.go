package cmd

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/cora-labs/lendsim/pkg/types"
)

// loadPrices reads a price history CSV. Rows are either "time,price"
// with unix-second timestamps, or a bare price column sampled at the
// step resolution. A non-numeric first row is treated as a header.
func loadPrices(path string) (types.PriceSeries, error) {
	if path == "" {
		return nil, errors.New("a price history file is required, see --prices")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening price file")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading price file")
	}

	var series types.PriceSeries
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}

		priceField := row[len(row)-1]
		price, err := strconv.ParseFloat(priceField, 64)
		if err != nil {
			if i == 0 {
				continue // header
			}
			return nil, errors.Errorf("price file row %d: bad price %q", i+1, priceField)
		}

		point := types.PricePoint{Price: price}
		if len(row) >= 2 {
			ts, err := strconv.ParseInt(row[0], 10, 64)
			if err != nil {
				return nil, errors.Errorf("price file row %d: bad timestamp %q", i+1, row[0])
			}
			point.Time = ts
		} else {
			point.Time = int64(len(series)) * types.StepSeconds
		}
		series = append(series, point)
	}

	if len(series) < 2 {
		return nil, errors.Errorf("price file %s: need at least two prices, got %d", path, len(series))
	}
	return series, nil
}
