package endpoint

import (
	"context"

	"go.uber.org/zap"

	"vetcare/account"
	"vetcare/profile"
	"vetcare/professional"
)

// Accounts is satisfied by *account.Service.
type Accounts interface {
	Register(ctx context.Context, in account.RegisterInput) (profile.Account, error)
	Authenticate(ctx context.Context, email, password string) (account.AuthResult, error)
	Get(ctx context.Context, id int64) (profile.Account, error)
	Update(ctx context.Context, id int64, patch account.Patch) (profile.Account, error)
	Remove(ctx context.Context, id int64) error
}

// Professionals is satisfied by *professional.Builder.
type Professionals interface {
	Create(ctx context.Context, req professional.CreateRequest) (profile.Professional, error)
	Get(ctx context.Context, id int64) (profile.Professional, error)
	Update(ctx context.Context, id int64, patch professional.Patch) (profile.Professional, error)
	ListBySpecies(ctx context.Context, speciesID int64) ([]profile.Professional, error)
	Remove(ctx context.Context, id int64) error
}

// Ratings is satisfied by *rating.Aggregator.
type Ratings interface {
	Recompute(ctx context.Context, professionalID int64) (*float64, error)
}

// API exposes every operation as a structured Response. Identifiers arrive
// as raw strings and are parsed here.
type API struct {
	accounts      Accounts
	professionals Professionals
	ratings       Ratings
	logger        *zap.Logger
}

// NewAPI wires the operation boundary.
func NewAPI(accounts Accounts, professionals Professionals, ratings Ratings, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{accounts: accounts, professionals: professionals, ratings: ratings, logger: logger.Named("endpoint")}
}

func ok(message string, data any) Response {
	return Response{Message: message, Data: data, Kind: KindOK}
}

func (a *API) fail(op string, err error) Response {
	kind := KindOf(err)
	if kind == KindInternal {
		a.logger.Error("operation failed", zap.String("op", op), zap.Error(err))
	} else {
		a.logger.Debug("operation rejected", zap.String("op", op), zap.String("kind", string(kind)), zap.Error(err))
	}
	return Response{Message: messageOf(err), Error: string(kind), Kind: kind}
}

// RegisterAccount opens a pet-owner account.
func (a *API) RegisterAccount(ctx context.Context, in account.RegisterInput) Response {
	acc, err := a.accounts.Register(ctx, in)
	if err != nil {
		return a.fail("register_account", err)
	}
	return ok("Account created", accountView(acc))
}

// Login checks the credentials and returns a session token.
func (a *API) Login(ctx context.Context, email, password string) Response {
	res, err := a.accounts.Authenticate(ctx, email, password)
	if err != nil {
		return a.fail("login", err)
	}
	return ok("Login successful", LoginView{Email: res.Email, Token: res.Token, AccountID: res.AccountID})
}

// GetAccount returns the account with its pet references.
func (a *API) GetAccount(ctx context.Context, rawID string) Response {
	id, err := profile.ParseID(rawID)
	if err != nil {
		return a.fail("get_account", err)
	}
	acc, err := a.accounts.Get(ctx, id)
	if err != nil {
		return a.fail("get_account", err)
	}
	return ok("found account", accountView(acc))
}

// UpdateAccount applies a partial update to the account.
func (a *API) UpdateAccount(ctx context.Context, rawID string, patch account.Patch) Response {
	id, err := profile.ParseID(rawID)
	if err != nil {
		return a.fail("update_account", err)
	}
	acc, err := a.accounts.Update(ctx, id, patch)
	if err != nil {
		return a.fail("update_account", err)
	}
	return ok("account updated", accountView(acc))
}

// RemoveAccount deletes the account and its pets.
func (a *API) RemoveAccount(ctx context.Context, rawID string) Response {
	id, err := profile.ParseID(rawID)
	if err != nil {
		return a.fail("remove_account", err)
	}
	if err := a.accounts.Remove(ctx, id); err != nil {
		return a.fail("remove_account", err)
	}
	return ok("account removed", nil)
}

// CreateProfessional registers a professional with its schedules and species.
func (a *API) CreateProfessional(ctx context.Context, req professional.CreateRequest) Response {
	p, err := a.professionals.Create(ctx, req)
	if err != nil {
		return a.fail("create_professional", err)
	}
	return ok("Professional created", professionalView(p))
}

// GetProfessional returns the professional aggregate.
func (a *API) GetProfessional(ctx context.Context, rawID string) Response {
	id, err := profile.ParseID(rawID)
	if err != nil {
		return a.fail("get_professional", err)
	}
	p, err := a.professionals.Get(ctx, id)
	if err != nil {
		return a.fail("get_professional", err)
	}
	return ok("found professional", professionalView(p))
}

// UpdateProfessional applies a partial update. Supplied schedules or species
// replace the existing ones.
func (a *API) UpdateProfessional(ctx context.Context, rawID string, patch professional.Patch) Response {
	id, err := profile.ParseID(rawID)
	if err != nil {
		return a.fail("update_professional", err)
	}
	p, err := a.professionals.Update(ctx, id, patch)
	if err != nil {
		return a.fail("update_professional", err)
	}
	return ok("professional updated", professionalView(p))
}

// ListProfessionals returns the professionals treating the species.
func (a *API) ListProfessionals(ctx context.Context, rawSpeciesID string) Response {
	speciesID, err := profile.ParseID(rawSpeciesID)
	if err != nil {
		return a.fail("list_professionals", err)
	}
	list, err := a.professionals.ListBySpecies(ctx, speciesID)
	if err != nil {
		return a.fail("list_professionals", err)
	}
	views := make([]ProfessionalView, 0, len(list))
	for _, p := range list {
		views = append(views, professionalView(p))
	}
	return ok("found matching professionals", views)
}

// RemoveProfessional deletes the professional and its schedule entries.
func (a *API) RemoveProfessional(ctx context.Context, rawID string) Response {
	id, err := profile.ParseID(rawID)
	if err != nil {
		return a.fail("remove_professional", err)
	}
	if err := a.professionals.Remove(ctx, id); err != nil {
		return a.fail("remove_professional", err)
	}
	return ok("professional removed", nil)
}

// RecomputeRating recalculates the professional's average rating.
func (a *API) RecomputeRating(ctx context.Context, rawID string) Response {
	id, err := profile.ParseID(rawID)
	if err != nil {
		return a.fail("recompute_rating", err)
	}
	avg, err := a.ratings.Recompute(ctx, id)
	if err != nil {
		return a.fail("recompute_rating", err)
	}
	return ok("rating recomputed", RatingView{ProfessionalID: id, Rating: avg})
}
