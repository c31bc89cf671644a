package loaders

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/internal/errs"
	"github.com/vellumapp/platform/internal/graph"
	"github.com/vellumapp/platform/internal/permissions"
)

// UserComputedLoader chains the entitlement graph traversal, the role
// table, and the permission folder behind the same load/load_many surface
// the rest of the fabric exposes (§4.11's "UserComputedLoader").
type UserComputedLoader struct {
	gateway *docstore.Gateway
	fabric  *Fabric
	folder  *permissions.Folder
}

func NewUserComputedLoader(gateway *docstore.Gateway, fabric *Fabric, folder *permissions.Folder) *UserComputedLoader {
	return &UserComputedLoader{gateway: gateway, fabric: fabric, folder: folder}
}

// Load computes a user's CalculatedEntitlements, taking the cached
// search-index fast path when the user has one and it hasn't been marked
// stale, and falling back to a full traversal otherwise.
func (l *UserComputedLoader) Load(ctx context.Context, userID string) (domain.CalculatedEntitlements, error) {
	user, err := l.fabric.Users.Load(ctx, userID)
	if err != nil {
		return domain.CalculatedEntitlements{}, err
	}

	roleOrder, allRoles, err := l.roleTable(ctx)
	if err != nil {
		return domain.CalculatedEntitlements{}, err
	}

	ban, err := l.activeBan(ctx, userID)
	if err != nil {
		return domain.CalculatedEntitlements{}, err
	}

	if user.SearchIndex != nil && !user.ReindexPending {
		return l.folder.FoldFromCache(*user.SearchIndex, userID, roleOrder, allRoles, ban), nil
	}

	seeds := graph.UserAuthorizationSeeds(userID)
	traversal, err := graph.Traverse(ctx, graph.NewLoader(l.gateway, graph.Outbound), seeds, time.Now())
	if err != nil {
		return domain.CalculatedEntitlements{}, err
	}

	generation := time.Now().UnixNano()
	return l.folder.Fold(ctx, userID, roleOrder, allRoles, ban, generation, traversal), nil
}

// roleTable loads every role and derives the role_order ranking fold.go
// needs, ordered by ascending Role.Rank (the admin-curated total order
// RoleOrder represents).
func (l *UserComputedLoader) roleTable(ctx context.Context) (permissions.RoleOrder, map[string]domain.Role, error) {
	repo := docstore.NewRepository[domain.Role](l.gateway, docstore.CollRoles)
	roles, err := repo.Find(ctx, bson.M{})
	if err != nil {
		return nil, nil, err
	}

	sortRolesByRank(roles)

	order := make(permissions.RoleOrder, 0, len(roles))
	byID := make(map[string]domain.Role, len(roles))
	for _, r := range roles {
		order = append(order, r.ID)
		byID[r.ID] = r
	}
	return order, byID, nil
}

func sortRolesByRank(roles []domain.Role) {
	for i := 1; i < len(roles); i++ {
		for j := i; j > 0 && roles[j].Rank < roles[j-1].Rank; j-- {
			roles[j], roles[j-1] = roles[j-1], roles[j]
		}
	}
}

func (l *UserComputedLoader) activeBan(ctx context.Context, userID string) (*domain.Ban, error) {
	repo := docstore.NewRepository[domain.Ban](l.gateway, docstore.CollBans)
	ban, err := repo.FindOne(ctx, bson.M{"user_id": userID})
	if errs.KindOf(err) == errs.KindNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ban, nil
}
