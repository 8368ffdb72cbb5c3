package config

import (
	"context"
	"strings"

	"github.com/mmdatafocus/voicebill_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantGuardPlugin scopes queries/updates/deletes to the request's owner_id when the
// model has an owner_id column. It is a backstop: stores still filter by owner explicitly.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include owner_id manually.
// - Internal bypass is explicit via appctx.ContextKeySkipTenantScope.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	return nil
}

func tenantGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassTenantScope(ctx) {
		return
	}
	ownerID := ownerIdFromContext(ctx)
	if ownerID == "" {
		return
	}

	if db.Statement.Schema == nil {
		return
	}
	hasOwnerID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "owner_id") {
			hasOwnerID = true
			break
		}
	}
	if !hasOwnerID {
		return
	}

	// Don't duplicate an explicit tenant filter.
	if whereHasOwnerID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "owner_id"},
				Value:  ownerID,
			},
		},
	})
}

func ownerIdFromContext(ctx context.Context) string {
	if v, ok := appctx.Get[string](ctx, appctx.ContextKeyOwnerId); ok && v != "" {
		return v
	}
	return ""
}

func shouldBypassTenantScope(ctx context.Context) bool {
	v, ok := appctx.Get[bool](ctx, appctx.ContextKeySkipTenantScope)
	return ok && v
}

func whereHasOwnerID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasOwnerID(e) {
			return true
		}
	}
	return false
}

func exprHasOwnerID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsOwnerID(v.Column)
	case clause.Neq:
		return colIsOwnerID(v.Column)
	case clause.IN:
		return colIsOwnerID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasOwnerID(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasOwnerID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "owner_id")
	default:
		return false
	}
}

func colIsOwnerID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "owner_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "owner_id")
	default:
		return false
	}
}
