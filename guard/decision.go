package guard

type Outcome string

const (
	OutcomeAllow                Outcome = "allow"
	OutcomeLoading              Outcome = "loading"
	OutcomeRedirectLogin        Outcome = "redirect_login"
	OutcomeRedirectUnauthorized Outcome = "redirect_unauthorized"
	OutcomeRedirectHome         Outcome = "redirect_home"
)

// Reason says which requirement an unauthorized decision failed.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonTenant       Reason = "tenant"
	ReasonPermission   Reason = "permission"
	ReasonRole         Reason = "role"
	ReasonAccessDenied Reason = "access-denied"
)

// Well-known navigation targets.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// Decision is the plain result of evaluating a route. It carries no side effects.
type Decision struct {
	Outcome  Outcome
	Intended string // RedirectLogin: where to return after signing in
	Reason   Reason // RedirectUnauthorized
	Target   string // where to navigate, empty for Allow and Loading
}

func Allow() Decision {
	return Decision{Outcome: OutcomeAllow}
}

func Loading() Decision {
	return Decision{Outcome: OutcomeLoading}
}

func RedirectLogin(intended string) Decision {
	return Decision{Outcome: OutcomeRedirectLogin, Intended: intended, Target: LoginPath}
}

func RedirectUnauthorized(reason Reason) Decision {
	return Decision{Outcome: OutcomeRedirectUnauthorized, Reason: reason, Target: UnauthorizedPath}
}

func RedirectHome(target string) Decision {
	return Decision{Outcome: OutcomeRedirectHome, Target: target}
}

func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}
