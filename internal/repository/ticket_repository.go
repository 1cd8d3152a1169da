package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/policy"
)

// ticketColumns is the shared list of columns for ticket queries.
var ticketColumns = []string{
	"id", "title", "description", "category", "priority", "status",
	"requester_id", "assignee_id", "resolved_at", "closed_at", "created_at", "updated_at",
}

var commentColumns = []string{
	"id", "ticket_id", "author_id", "content", "is_internal", "created_at",
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed store.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.RequesterID,
		&ticket.AssigneeID,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	return &ticket, nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	query, args, err := psql.
		Insert("tickets").
		Columns("id", "title", "description", "category", "priority", "status", "requester_id", "assignee_id").
		Values(
			ticket.ID,
			ticket.Title,
			ticket.Description,
			ticket.Category,
			ticket.Priority,
			ticket.Status,
			ticket.RequesterID,
			ticket.AssigneeID,
		).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for ticket: %w", err)
	}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	ticket.Comments = []domain.Comment{}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query, args, err := psql.
		Select(ticketColumns...).
		From("tickets").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for ticket: %w", err)
	}
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	comments, err := r.commentsFor(ctx, r.pool, []string{ticket.ID})
	if err != nil {
		return nil, err
	}
	ticket.Comments = comments[ticket.ID]
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query, args, err := applyTicketFilter(psql.Select(ticketColumns...).From("tickets"), filter).
		OrderBy("created_at DESC", "id").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build List query for tickets: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	ids := []string{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
		ids = append(ids, ticket.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Ticket{}, nil
	}

	comments, err := r.commentsFor(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		tickets[i].Comments = comments[tickets[i].ID]
	}
	return tickets, nil
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	query, args, err := applyTicketFilter(psql.Select("COUNT(*)").From("tickets"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build Count query for tickets: %w", err)
	}
	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return total, nil
}

// Update locks the ticket row, hands the current state to mutate and writes
// the result back in the same transaction. Category and requester are never
// written.
func (r *ticketRepository) Update(ctx context.Context, id string, mutate MutateFunc) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin ticket update: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query, args, err := psql.
		Select(ticketColumns...).
		From("tickets").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build locked select for ticket %s: %w", id, err)
	}
	ticket, err := scanTicket(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	comments, err := r.commentsFor(ctx, tx, []string{ticket.ID})
	if err != nil {
		return nil, err
	}
	ticket.Comments = comments[ticket.ID]

	if err := mutate(ticket); err != nil {
		return nil, err
	}

	query, args, err = psql.
		Update("tickets").
		Set("title", ticket.Title).
		Set("description", ticket.Description).
		Set("priority", ticket.Priority).
		Set("status", ticket.Status).
		Set("assignee_id", ticket.AssigneeID).
		Set("resolved_at", ticket.ResolvedAt).
		Set("closed_at", ticket.ClosedAt).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": ticket.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Update query for ticket %s: %w", id, err)
	}
	if err := tx.QueryRow(ctx, query, args...).Scan(&ticket.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit ticket update: %w", err)
	}
	return ticket, nil
}

// AppendComment inserts the comment and touches the parent ticket in one
// transaction. Appends are plain inserts, so concurrent writers never lose
// each other's comments.
func (r *ticketRepository) AppendComment(ctx context.Context, ticketID string, comment *domain.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	comment.TicketID = ticketID

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin comment append: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query, args, err := psql.
		Update("tickets").
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": ticketID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch query for ticket %s: %w", ticketID, err)
	}
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("touch ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}

	query, args, err = psql.
		Insert("ticket_comments").
		Columns("id", "ticket_id", "author_id", "content", "is_internal").
		Values(comment.ID, comment.TicketID, comment.AuthorID, comment.Content, comment.IsInternal).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build AppendComment query: %w", err)
	}
	if err := tx.QueryRow(ctx, query, args...).Scan(&comment.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit comment append: %w", err)
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *ticketRepository) commentsFor(ctx context.Context, q querier, ticketIDs []string) (map[string][]domain.Comment, error) {
	query, args, err := psql.
		Select(commentColumns...).
		From("ticket_comments").
		Where(sq.Eq{"ticket_id": ticketIDs}).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build comments query: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.Comment, len(ticketIDs))
	for _, id := range ticketIDs {
		result[id] = []domain.Comment{}
	}
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.Content, &c.IsInternal, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		result[c.TicketID] = append(result[c.TicketID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return result, nil
}

func applyTicketFilter(builder sq.SelectBuilder, filter TicketFilter) sq.SelectBuilder {
	builder = builder.Where(scopeCondition(filter.Scope))
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": *filter.Status})
	}
	if filter.Category != nil {
		builder = builder.Where(sq.Eq{"category": *filter.Category})
	}
	if filter.Priority != nil {
		builder = builder.Where(sq.Eq{"priority": *filter.Priority})
	}
	return builder
}

func scopeCondition(scope policy.Scope) sq.Sqlizer {
	switch {
	case scope.All:
		return sq.Expr("1=1")
	case scope.Category != "":
		if scope.AssigneeID == "" {
			return sq.Eq{"category": scope.Category}
		}
		return sq.Or{
			sq.Eq{"category": scope.Category},
			sq.Eq{"assignee_id": scope.AssigneeID},
		}
	case scope.RequesterID != "":
		return sq.Eq{"requester_id": scope.RequesterID}
	default:
		return sq.Expr("1=0")
	}
}
