// Package service реализует бизнес-логику сервиса aquabill.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/aquabill/internal/compliance"
	"github.com/mmeshcher/aquabill/internal/gateway"
	"github.com/mmeshcher/aquabill/internal/model"
	"github.com/mmeshcher/aquabill/internal/receipt"
	"github.com/mmeshcher/aquabill/internal/repository"
	"github.com/mmeshcher/aquabill/internal/validation"
)

var (
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidTransition возвращается, если переход статуса счёта запрещён.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrPaymentDeclined возвращается, если платёжная система отклонила карту.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrGatewayBusy возвращается, если платёжная система попросила повторить запрос позже.
	ErrGatewayBusy = errors.New("payment gateway busy")
	// ErrComposerUnavailable возвращается, если генерация юридического текста не настроена.
	ErrComposerUnavailable = errors.New("compliant invoice composer is not configured")
	// ErrComposeFailed возвращается, если модель не смогла сгенерировать юридический текст.
	ErrComposeFailed = errors.New("compose compliant invoice")
)

// BusyError несёт задержку, после которой платёжную систему можно вызвать снова.
type BusyError struct {
	RetryAfter time.Duration
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrGatewayBusy, e.RetryAfter)
}

func (e *BusyError) Unwrap() error { return ErrGatewayBusy }

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, email, name string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateInvoice(ctx context.Context, inv *model.Invoice) error
	GetInvoicesByUser(ctx context.Context, userID int64) ([]model.Invoice, error)
	GetInvoice(ctx context.Context, userID int64, id string) (*model.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, userID int64, id string, from, to model.InvoiceStatus) error
	SetCompliantText(ctx context.Context, userID int64, id, text string) error
	DeleteInvoice(ctx context.Context, userID int64, id string) error
	MarkOverdueInvoices(ctx context.Context, now time.Time, limit int) ([]repository.OverdueInvoice, error)
	CreatePayment(ctx context.Context, p *model.Payment) error
	GetPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error)
	GetPayment(ctx context.Context, userID int64, id string) (*model.Payment, error)
}

// Gateway авторизует списание с карты во внешней платёжной системе.
type Gateway interface {
	Authorize(ctx context.Context, req gateway.AuthorizationRequest) (*gateway.Authorization, int, time.Duration, error)
}

// Composer генерирует юридически корректный текст счёта.
type Composer interface {
	Compose(ctx context.Context, req compliance.Request) (string, error)
}

// Publisher публикует доменные события.
type Publisher interface {
	Publish(eventType, key string, payload any)
}

// IdempotencyStore хранит ключи идемпотентности создания счетов.
type IdempotencyStore interface {
	LookupInvoice(ctx context.Context, userID int64, key string) (string, bool, error)
	RememberInvoice(ctx context.Context, userID int64, key, invoiceID string) error
}

// Options задаёт необязательные зависимости сервиса. Незаданные интеграции отключены.
// Company и LegalRequirements используются в документах и счетах бухгалтера,
// Issuer и IssuerLegalRequirements при генерации юридического текста по счёту пользователя.
type Options struct {
	Gateway                 Gateway
	Composer                Composer
	Publisher               Publisher
	Idempotency             IdempotencyStore
	Company                 receipt.Company
	LegalRequirements       string
	Issuer                  receipt.Company
	IssuerLegalRequirements string
	OverdueInterval         time.Duration
	Logger                  *zap.Logger
}

// Service содержит бизнес-логику сервиса aquabill.
type Service struct {
	repo      Repository
	gateway   Gateway
	composer  Composer
	publisher Publisher
	idem      IdempotencyStore

	company         receipt.Company
	legal           string
	issuer          receipt.Company
	issuerLegal     string
	overdueInterval time.Duration

	logger *zap.Logger
	now    func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и интеграциями.
func NewService(repo Repository, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:            repo,
		gateway:         opts.Gateway,
		composer:        opts.Composer,
		publisher:       opts.Publisher,
		idem:            opts.Idempotency,
		company:         opts.Company,
		legal:           opts.LegalRequirements,
		issuer:          opts.Issuer,
		issuerLegal:     opts.IssuerLegalRequirements,
		overdueInterval: opts.OverdueInterval,
		logger:          logger,
		now:             time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) publish(eventType, key string, payload any) {
	if s.publisher != nil {
		s.publisher.Publish(eventType, key, payload)
	}
}

// RegisterUser регистрирует нового покупателя. Имя берётся из локальной части email.
func (s *Service) RegisterUser(ctx context.Context, in model.SignupInput) (model.Profile, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Signup(in); err != nil {
		return model.Profile{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	name := displayName(in.Email)
	id, err := s.repo.CreateUser(ctx, in.Email, name, hashed, model.RoleCustomer)
	if err != nil {
		return model.Profile{}, err
	}

	return model.Profile{ID: id, Name: name, Email: in.Email, Role: model.RoleCustomer}, nil
}

// AuthenticateUser проверяет email и пароль и возвращает профиль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, in model.LoginInput) (model.Profile, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Login(in); err != nil {
		return model.Profile{}, err
	}

	u, err := s.repo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.Profile{}, ErrInvalidCredentials
		}
		return model.Profile{}, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(in.Password)); err != nil {
		return model.Profile{}, ErrInvalidCredentials
	}

	return u.Profile(), nil
}

// CurrentRole возвращает текущую роль пользователя.
func (s *Service) CurrentRole(ctx context.Context, userID int64) (model.Role, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

// GetProfile возвращает профиль пользователя.
func (s *Service) GetProfile(ctx context.Context, userID int64) (model.Profile, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	return u.Profile(), nil
}

// ListUsers возвращает профили всех пользователей.
func (s *Service) ListUsers(ctx context.Context) ([]model.Profile, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]model.Profile, 0, len(users))
	for _, u := range users {
		res = append(res, u.Profile())
	}
	return res, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayName(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
