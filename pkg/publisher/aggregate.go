package publisher

import (
	"sort"
)

// Output columns that never come from the API payload.
const (
	ColumnInputPublisherID = "input_publisher_id"
	ColumnInputDomain      = "input_domain"
	ColumnLookupStatus     = "lookup_status"
	ColumnLookupError      = "lookup_error"
)

// Values of the lookup_status column.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// collisionPrefix is prepended to payload keys that clash with a reserved
// column so the input identifiers are never overwritten.
const collisionPrefix = "response_"

// Fields are the known publisher metadata fields, in output order.
var Fields = []string{
	"publisher_id",
	"name",
	"visit_enabled",
	"status",
	"primary_supply_type",
	"pub_description",
	"categories",
	"slug",
	"avg_ads_to_content_ratio",
	"avg_ads_in_view",
	"avg_ad_refresh",
	"total_unique_gpids",
	"id_absorption_rate",
	"avg_page_weight",
	"avg_cpu",
	"total_supply_paths",
	"reseller_count",
	"owner_domain",
	"updated_at",
}

var reservedColumns = map[string]bool{
	ColumnInputPublisherID: true,
	ColumnInputDomain:      true,
	ColumnLookupStatus:     true,
	ColumnLookupError:      true,
}

// payloadColumns maps every payload key to its output column. Keys that
// clash with a reserved column are prefixed until the name is free, so a
// payload carrying both "input_domain" and "response_input_domain" keeps
// both values in distinct columns.
func payloadColumns(payload map[string]string) map[string]string {
	keys := make([]string, 0, len(payload))
	used := make(map[string]bool, len(payload))
	for key := range payload {
		keys = append(keys, key)
		if !reservedColumns[key] {
			used[key] = true
		}
	}
	sort.Strings(keys)

	columns := make(map[string]string, len(payload))
	for _, key := range keys {
		if !reservedColumns[key] {
			columns[key] = key
			continue
		}
		col := collisionPrefix + key
		for used[col] || reservedColumns[col] {
			col = collisionPrefix + col
		}
		used[col] = true
		columns[key] = col
	}
	return columns
}

// Columns returns the header for results: known fields, then any other
// payload keys sorted, then the input and status columns.
func Columns(results []LookupResult) []string {
	known := make(map[string]bool, len(Fields))
	for _, f := range Fields {
		known[f] = true
	}

	extraSet := make(map[string]bool)
	for _, res := range results {
		for _, col := range payloadColumns(res.Payload) {
			if !known[col] {
				extraSet[col] = true
			}
		}
	}

	extras := make([]string, 0, len(extraSet))
	for col := range extraSet {
		extras = append(extras, col)
	}
	sort.Strings(extras)

	columns := make([]string, 0, len(Fields)+len(extras)+len(reservedColumns))
	columns = append(columns, Fields...)
	columns = append(columns, extras...)
	columns = append(columns,
		ColumnInputPublisherID,
		ColumnInputDomain,
		ColumnLookupStatus,
		ColumnLookupError,
	)
	return columns
}

// Row renders one result in column order. Failed lookups produce empty
// payload cells with the input identifiers intact.
func Row(res LookupResult, columns []string) []string {
	values := make(map[string]string, len(res.Payload)+len(reservedColumns))
	if res.Success() {
		for key, col := range payloadColumns(res.Payload) {
			values[col] = res.Payload[key]
		}
	}

	values[ColumnInputPublisherID] = res.Request.InputPublisherID
	values[ColumnInputDomain] = res.Request.InputDomain
	if res.Success() {
		values[ColumnLookupStatus] = StatusSuccess
	} else {
		values[ColumnLookupStatus] = StatusFailed
		values[ColumnLookupError] = res.Reason()
	}

	row := make([]string, len(columns))
	for i, col := range columns {
		row[i] = values[col]
	}
	return row
}

// Aggregate renders all results, one row per result, in input order.
func Aggregate(results []LookupResult) (header []string, rows [][]string) {
	header = Columns(results)
	rows = make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, Row(res, header))
	}
	return header, rows
}
