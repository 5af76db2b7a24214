package client

import "context"

type ClientRepository interface {
	Create(ctx context.Context, c Client) (Client, error)
	GetByID(ctx context.Context, workspaceID, id string) (Client, error)
	List(ctx context.Context, filter ClientFilter) ([]Client, int64, error)
	Update(ctx context.Context, c Client) error
	Delete(ctx context.Context, workspaceID, id string) error

	AddNote(ctx context.Context, note Note) (Note, error)
	ListNotes(ctx context.Context, clientID string) ([]Note, error)
}
