package share

// Data is what a share code encodes for a content item.
type Data struct {
	ContentID string `json:"content_id"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	Currency  string `json:"currency"`
	URL       string `json:"url"`
}

//go:generate mockgen -destination=../../usecase/sharecontent/mocks/mock_generator.go -package=mocks github.com/Xausdorf/clout-ledger/internal/domain/share Generator

type Generator interface {
	Generate(data Data) ([]byte, error)
}
