package client

import "context"

type ClientService interface {
	Create(ctx context.Context, workspaceID string, req CreateClientRequest) (ClientResponse, error)
	Get(ctx context.Context, workspaceID, id string) (ClientResponse, error)
	List(ctx context.Context, filter ClientFilter) ([]ClientResponse, int64, error)
	Update(ctx context.Context, workspaceID, id string, req UpdateClientRequest) (ClientResponse, error)
	Delete(ctx context.Context, workspaceID, id string) error
	AddNote(ctx context.Context, workspaceID, userID, clientID string, req AddNoteRequest) (NoteResponse, error)
	ListNotes(ctx context.Context, workspaceID, clientID string) ([]NoteResponse, error)
	Statement(ctx context.Context, workspaceID, clientID string) (StatementResponse, error)
}
