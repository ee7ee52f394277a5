package review

import "strings"

const (
	ColumnReviewID         = "review_id"
	ColumnPublishTime      = "publish_time"
	ColumnRating           = "rating"
	ColumnReviewText       = "review_text"
	ColumnPlaceName        = "place_name"
	ColumnReplyPublishTime = "reply_publish_time"
)

// RequiredColumns must be present in every ingested table.
var RequiredColumns = []string{
	ColumnReviewID,
	ColumnPublishTime,
	ColumnRating,
	ColumnReviewText,
}

// ValidateColumns checks a header against RequiredColumns and returns a
// column-name to index map. Header names are matched after trimming and
// lower-casing.
func ValidateColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnError{Columns: missing}
	}

	return index, nil
}
