// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/samber/lo"
)

const (
	ColumnId            = "id"
	ColumnName          = "name"
	ColumnCategory      = "category"
	ColumnLocation      = "location"
	ColumnPriceEstimate = "price_estimate"
	ColumnLatitude      = "latitude"
	ColumnLongitude     = "longitude"
	ColumnUserId        = "user_id"
	ColumnItemId        = "item_id"
	ColumnScore         = "score"
)

// columnAliases maps column names of the original Portuguese data files.
var columnAliases = map[string]string{
	"nome":           ColumnName,
	"categoria":      ColumnCategory,
	"localizacao":    ColumnLocation,
	"preco_estimado": ColumnPriceEstimate,
	"usuario_id":     ColumnUserId,
	"nota":           ColumnScore,
}

var (
	catalogColumns = []string{ColumnId, ColumnName, ColumnCategory, ColumnLocation, ColumnPriceEstimate}
	ratingColumns  = []string{ColumnUserId, ColumnItemId, ColumnScore}
)

// ErrMissingColumn is returned when a required column is absent from a file header.
var ErrMissingColumn = errors.NotValidf("required column")

// ReadLines parse fields of each line for csv file.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) error) error {
	lineCount := 0               // line number of current position
	fields := make([]string, 0)  // fields for current line
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	for sc.Scan() {
		// read line
		line := []rune(strings.TrimSuffix(sc.Text(), "\r"))
		// start of line
		if quoted {
			builder.WriteString("\r\n")
		}
		// parse line
		for i := 0; i < len(line); i++ {
			if string(line[i]) == sep && !quoted {
				// end of field
				fields = append(fields, builder.String())
				builder.Reset()
			} else if line[i] == '"' {
				if quoted {
					if i+1 >= len(line) || line[i+1] != '"' {
						// end of quoted
						quoted = false
					} else {
						i++
						builder.WriteRune('"')
					}
				} else {
					// start of quoted
					quoted = true
				}
			} else {
				builder.WriteRune(line[i])
			}
		}
		// end of line
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if err := handler(lineCount, fields); err != nil {
				return err
			}
			fields = []string{}
		}
		// increase line count
		lineCount++
	}
	return sc.Err()
}

// header maps normalized column names to field positions.
type header map[string]int

func parseHeader(fields []string, required []string) (header, error) {
	h := make(header, len(fields))
	for i, field := range fields {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(field, "\ufeff")))
		if alias, exist := columnAliases[name]; exist {
			name = alias
		}
		h[name] = i
	}
	for _, column := range required {
		if _, exist := h[column]; !exist {
			return nil, errors.Annotatef(ErrMissingColumn, "column `%s` not found in header [%s]",
				column, strings.Join(fields, ","))
		}
	}
	return h, nil
}

func (h header) get(fields []string, column string) (string, bool) {
	i, exist := h[column]
	if !exist || i >= len(fields) {
		return "", false
	}
	return strings.TrimSpace(fields[i]), true
}

func (h header) columns() []string {
	return lo.Keys(h)
}

// LoadCatalog reads a catalog from tabular text with a header line.
func LoadCatalog(r io.Reader, sep string) (*Catalog, error) {
	var (
		h     header
		items []Item
	)
	sc := bufio.NewScanner(r)
	err := ReadLines(sc, sep, func(line int, fields []string) error {
		var err error
		if line == 0 {
			h, err = parseHeader(fields, catalogColumns)
			return err
		}
		if lo.EveryBy(fields, func(s string) bool { return strings.TrimSpace(s) == "" }) {
			return nil
		}
		var item Item
		id, _ := h.get(fields, ColumnId)
		if item.ItemId, err = strconv.Atoi(id); err != nil {
			return errors.Annotatef(err, "invalid item id at line %d", line+1)
		}
		item.Name, _ = h.get(fields, ColumnName)
		item.Category, _ = h.get(fields, ColumnCategory)
		item.Location, _ = h.get(fields, ColumnLocation)
		item.PriceTier, _ = h.get(fields, ColumnPriceEstimate)
		if item.Latitude, err = parseOptionalFloat(h, fields, ColumnLatitude); err != nil {
			return errors.Annotatef(err, "invalid latitude at line %d", line+1)
		}
		if item.Longitude, err = parseOptionalFloat(h, fields, ColumnLongitude); err != nil {
			return errors.Annotatef(err, "invalid longitude at line %d", line+1)
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if h == nil {
		return nil, errors.Annotate(ErrMissingColumn, "empty catalog file")
	}
	return NewCatalog(items, h.columns()...)
}

// LoadCatalogFile reads a catalog from a file.
func LoadCatalogFile(path, sep string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return LoadCatalog(file, sep)
}

// LoadRatings reads ratings from tabular text with a header line.
func LoadRatings(r io.Reader, sep string) ([]Rating, error) {
	var (
		h       header
		ratings []Rating
	)
	sc := bufio.NewScanner(r)
	err := ReadLines(sc, sep, func(line int, fields []string) error {
		var err error
		if line == 0 {
			h, err = parseHeader(fields, ratingColumns)
			return err
		}
		if lo.EveryBy(fields, func(s string) bool { return strings.TrimSpace(s) == "" }) {
			return nil
		}
		rating, err := parseRating(h, fields)
		if err != nil {
			return errors.Annotatef(err, "invalid rating at line %d", line+1)
		}
		ratings = append(ratings, rating)
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if h == nil {
		return nil, errors.Annotate(ErrMissingColumn, "empty ratings file")
	}
	return ratings, nil
}

// LoadRatingsFile reads ratings from a file.
func LoadRatingsFile(path, sep string) ([]Rating, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return LoadRatings(file, sep)
}

// FormatRating formats a rating as a line of the ratings file.
func FormatRating(rating Rating, sep string) string {
	return strings.Join([]string{
		strconv.Itoa(rating.UserId),
		strconv.Itoa(rating.ItemId),
		strconv.FormatFloat(rating.Score, 'f', -1, 64),
	}, sep)
}

// RatingsHeader is the header line of a ratings file.
func RatingsHeader(sep string) string {
	return strings.Join(ratingColumns, sep)
}

func parseRating(h header, fields []string) (Rating, error) {
	var (
		rating Rating
		err    error
	)
	userId, _ := h.get(fields, ColumnUserId)
	if rating.UserId, err = strconv.Atoi(userId); err != nil {
		return Rating{}, errors.Trace(err)
	}
	itemId, _ := h.get(fields, ColumnItemId)
	if rating.ItemId, err = strconv.Atoi(itemId); err != nil {
		return Rating{}, errors.Trace(err)
	}
	score, _ := h.get(fields, ColumnScore)
	if rating.Score, err = strconv.ParseFloat(score, 64); err != nil {
		return Rating{}, errors.Trace(err)
	}
	return rating, nil
}

func parseOptionalFloat(h header, fields []string, column string) (*float64, error) {
	text, exist := h.get(fields, column)
	if !exist || text == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &value, nil
}
