package service

import "context"

// TxRepositories exposes transaction-scoped repositories.
type TxRepositories interface {
	Files() FileRepository
	EmbedJobs() EmbedJobRepository
}

// TxRunner runs a function inside a database transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
