package trust

import "errors"

var (
	// ErrInvalidLevel marks trust levels outside the [0, 1] range.
	ErrInvalidLevel = errors.New("trust: level outside [0, 1]")
	// ErrBlocked is returned when a caller tries to trust a user that has
	// blocked them.
	ErrBlocked = errors.New("trust: caller is blocked by target")
	// ErrInsufficientDeposit marks calls whose attached payment does not cover
	// the marginal storage cost of the mutation.
	ErrInsufficientDeposit = errors.New("trust: insufficient deposit")
	// ErrUnauthorized marks privileged calls from accounts other than the
	// operator.
	ErrUnauthorized = errors.New("trust: unauthorized")
	// ErrWouldBreachSolvency is returned when a profit extraction would leave
	// the registry balance below the tracked user deposits.
	ErrWouldBreachSolvency = errors.New("trust: extraction would breach solvency")
	// ErrNotFound marks lookups of records that do not exist.
	ErrNotFound = errors.New("trust: record not found")
	// ErrInvalidAmount marks nil, negative or zero token amounts where a
	// positive amount is required.
	ErrInvalidAmount = errors.New("trust: invalid amount")

	errNilState       = errors.New("trust: state not configured")
	errNilEnvironment = errors.New("trust: environment not configured")
)
