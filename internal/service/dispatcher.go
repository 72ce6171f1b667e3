package service

import (
	"context"
	"fmt"

	"mediavault/internal/model"
)

// Dispatcher routes decoded transport commands to the owning service. It is
// the single choke point for the admin gate: a non-admin invoking an
// admin-only kind is refused before any service runs, and the refusal is
// not audited since nothing changed state.
type Dispatcher struct {
	accounts *AccountService
	ledger   *LedgerService
	audit    *AuditService
}

func NewDispatcher(accounts *AccountService, ledger *LedgerService, audit *AuditService) *Dispatcher {
	return &Dispatcher{accounts: accounts, ledger: ledger, audit: audit}
}

var adminCommands = map[model.CommandKind]bool{
	model.CommandAdminListFiles:  true,
	model.CommandAdminDeleteFile: true,
	model.CommandAdminPurgeUser:  true,
	model.CommandAdminRetention:  true,
	model.CommandAdminAuditQuery: true,
}

// Do executes one command on behalf of the actor.
func (d *Dispatcher) Do(ctx context.Context, actor model.Actor, cmd model.Command) (model.CommandResult, error) {
	if adminCommands[cmd.Kind] && actor.Kind != model.ActorAdmin {
		return model.CommandResult{}, fmt.Errorf("%s: %w", cmd.Kind, model.ErrUnauthorized)
	}

	switch cmd.Kind {
	case model.CommandUpload:
		if cmd.Upload == nil {
			return model.CommandResult{}, fmt.Errorf("%s needs an upload payload: %w", cmd.Kind, model.ErrInvalidInput)
		}
		rec, err := d.ledger.Upload(ctx, actor, *cmd.Upload)
		if err != nil {
			return model.CommandResult{}, err
		}
		return model.CommandResult{File: &rec}, nil

	case model.CommandListFiles:
		files, err := d.ledger.ListActive(ctx, actor)
		if err != nil {
			return model.CommandResult{}, err
		}
		return model.CommandResult{Files: files}, nil

	case model.CommandDownloadFile:
		if cmd.File == nil {
			return model.CommandResult{}, fmt.Errorf("%s needs a file key: %w", cmd.Kind, model.ErrInvalidInput)
		}
		ref, err := d.ledger.RecordDownload(ctx, actor, *cmd.File)
		if err != nil {
			return model.CommandResult{}, err
		}
		return model.CommandResult{Ref: ref}, nil

	case model.CommandDeleteFile, model.CommandAdminDeleteFile:
		if cmd.File == nil {
			return model.CommandResult{}, fmt.Errorf("%s needs a file key: %w", cmd.Kind, model.ErrInvalidInput)
		}
		return model.CommandResult{}, d.ledger.SoftDelete(ctx, actor, *cmd.File)

	case model.CommandPurgeOwn:
		n, err := d.ledger.PurgeAllForOwner(ctx, actor, actor.UserID)
		if err != nil {
			return model.CommandResult{}, err
		}
		return model.CommandResult{Count: n}, nil

	case model.CommandSearchFiles:
		files, err := d.ledger.Search(ctx, actor, cmd.Query)
		if err != nil {
			return model.CommandResult{}, err
		}
		return model.CommandResult{Files: files}, nil

	case model.CommandRecentFiles:
		files, err := d.ledger.Recent(ctx, actor, 0)
		if err != nil {
			return model.CommandResult{}, err
		}
		return model.CommandResult{Files: files}, nil

	case model.CommandEraseAccount:
		return model.CommandResult{}, d.accounts.Erase(ctx, actor.UserID)

	case model.CommandAdminListFiles:
		files, err := d.ledger.ListAllActive(ctx, actor)
		if err != nil {
			return model.CommandResult{}, err
		}
		return model.CommandResult{Files: files}, nil

	case model.CommandAdminPurgeUser:
		n, err := d.ledger.PurgeAllForOwner(ctx, actor, cmd.OwnerID)
		if err != nil {
			return model.CommandResult{}, err
		}
		return model.CommandResult{Count: n}, nil

	case model.CommandAdminRetention:
		if cmd.Retention == nil {
			return model.CommandResult{}, fmt.Errorf("%s needs a retention change: %w", cmd.Kind, model.ErrInvalidInput)
		}
		return model.CommandResult{}, d.ledger.SetRetention(ctx, actor, *cmd.Retention)

	case model.CommandAdminAuditQuery:
		var q model.AuditQuery
		if cmd.Audit != nil {
			q = *cmd.Audit
		}
		entries, err := d.audit.Query(ctx, actor, q)
		if err != nil {
			return model.CommandResult{}, err
		}
		return model.CommandResult{Entries: entries}, nil

	default:
		return model.CommandResult{}, fmt.Errorf("unknown command %q: %w", cmd.Kind, model.ErrInvalidInput)
	}
}
