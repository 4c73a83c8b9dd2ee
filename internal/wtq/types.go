package wtq

// Table holds one WikiTableQuestions table.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
	Name   string     `json:"name"`
}

// Example is one test-split question with its gold answers and table.
type Example struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answers  []string `json:"answers"`
	Table    Table    `json:"table"`
}

// SplitRow is one parsed line of the test split file, before table join.
type SplitRow struct {
	ID        string
	Question  string
	TableName string
	Answers   []string
}
