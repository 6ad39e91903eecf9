package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/allisson/identity/internal/auth/cache"
	authHTTP "github.com/allisson/identity/internal/auth/http"
	authMySQL "github.com/allisson/identity/internal/auth/repository/mysql"
	authPostgreSQL "github.com/allisson/identity/internal/auth/repository/postgresql"
	authService "github.com/allisson/identity/internal/auth/service"
	authUseCase "github.com/allisson/identity/internal/auth/usecase"
	"github.com/allisson/identity/internal/config"
	"github.com/allisson/identity/internal/mailer"
)

// authRepositories groups the credential store repositories of one driver.
type authRepositories struct {
	users          authUseCase.UserRepository
	roles          authUseCase.RoleRepository
	refreshTokens  authUseCase.RefreshTokenRepository
	revokedTokens  authUseCase.RevokedTokenRepository
	twoFactor      authUseCase.TwoFactorTokenRepository
	passwordResets authUseCase.PasswordResetTokenRepository
}

// authComponents holds the lazily built auth services, use cases and handlers.
type authComponents struct {
	passwordService authService.PasswordService
	tokenService    authService.TokenService
	kmsService      authService.KMSService
	tokenCodec      authService.TokenCodec
	repositories    *authRepositories
	revocationCache authUseCase.RevocationCache
	mailer          authUseCase.Mailer

	twoFactorUseCase     authUseCase.TwoFactorUseCase
	revocationUseCase    authUseCase.RevocationUseCase
	passwordResetUseCase authUseCase.PasswordResetUseCase
	sessionUseCase       authUseCase.SessionUseCase
	roleUseCase          authUseCase.RoleUseCase
	housekeepingUseCase  authUseCase.HousekeepingUseCase

	sessionHandler  *authHTTP.SessionHandler
	passwordHandler *authHTTP.PasswordHandler
	roleHandler     *authHTTP.RoleHandler

	passwordServiceInit      sync.Once
	tokenServiceInit         sync.Once
	kmsServiceInit           sync.Once
	tokenCodecInit           sync.Once
	repositoriesInit         sync.Once
	revocationCacheInit      sync.Once
	mailerInit               sync.Once
	twoFactorUseCaseInit     sync.Once
	revocationUseCaseInit    sync.Once
	passwordResetUseCaseInit sync.Once
	sessionUseCaseInit       sync.Once
	roleUseCaseInit          sync.Once
	housekeepingUseCaseInit  sync.Once
	sessionHandlerInit       sync.Once
	passwordHandlerInit      sync.Once
	roleHandlerInit          sync.Once
}

// PasswordService returns the password hasher selected by PASSWORD_HASH_ALGORITHM.
func (c *Container) PasswordService() (authService.PasswordService, error) {
	var err error
	c.passwordServiceInit.Do(func() {
		c.passwordService, err = authService.NewPasswordService(
			c.config.PasswordHashAlgorithm,
			c.config.PasswordBcryptCost,
		)
		if err != nil {
			c.initErrors["passwordService"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["passwordService"]; exists {
		return nil, storedErr
	}
	return c.passwordService, nil
}

// TokenService returns the generator of reset tokens and challenge codes.
func (c *Container) TokenService() authService.TokenService {
	c.tokenServiceInit.Do(func() {
		c.tokenService = authService.NewTokenService()
	})
	return c.tokenService
}

// KMSService returns the service unwrapping KMS-encrypted signing keys.
func (c *Container) KMSService() authService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = authService.NewKMSService()
	})
	return c.kmsService
}

// TokenCodec returns the JWT codec signing access and refresh tokens.
func (c *Container) TokenCodec() (authService.TokenCodec, error) {
	var err error
	c.tokenCodecInit.Do(func() {
		c.tokenCodec, err = c.initTokenCodec()
		if err != nil {
			c.initErrors["tokenCodec"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["tokenCodec"]; exists {
		return nil, storedErr
	}
	return c.tokenCodec, nil
}

func (c *Container) authRepositories() (*authRepositories, error) {
	var err error
	c.repositoriesInit.Do(func() {
		c.repositories, err = c.initAuthRepositories()
		if err != nil {
			c.initErrors["authRepositories"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["authRepositories"]; exists {
		return nil, storedErr
	}
	return c.repositories, nil
}

// RevocationCache returns the Redis denylist cache, or a no-op cache when
// REDIS_URL is empty.
func (c *Container) RevocationCache() (authUseCase.RevocationCache, error) {
	var err error
	c.revocationCacheInit.Do(func() {
		c.revocationCache, err = c.initRevocationCache()
		if err != nil {
			c.initErrors["revocationCache"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["revocationCache"]; exists {
		return nil, storedErr
	}
	return c.revocationCache, nil
}

// Mailer returns the email collaborator selected by EMAIL_DRIVER.
func (c *Container) Mailer() (authUseCase.Mailer, error) {
	var err error
	c.mailerInit.Do(func() {
		c.mailer, err = c.initMailer()
		if err != nil {
			c.initErrors["mailer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["mailer"]; exists {
		return nil, storedErr
	}
	return c.mailer, nil
}

// TwoFactorUseCase returns the challenge manager.
func (c *Container) TwoFactorUseCase() (authUseCase.TwoFactorUseCase, error) {
	var err error
	c.twoFactorUseCaseInit.Do(func() {
		c.twoFactorUseCase, err = c.initTwoFactorUseCase()
		if err != nil {
			c.initErrors["twoFactorUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["twoFactorUseCase"]; exists {
		return nil, storedErr
	}
	return c.twoFactorUseCase, nil
}

// RevocationUseCase returns the revocation registry.
func (c *Container) RevocationUseCase() (authUseCase.RevocationUseCase, error) {
	var err error
	c.revocationUseCaseInit.Do(func() {
		c.revocationUseCase, err = c.initRevocationUseCase()
		if err != nil {
			c.initErrors["revocationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["revocationUseCase"]; exists {
		return nil, storedErr
	}
	return c.revocationUseCase, nil
}

// PasswordResetUseCase returns the password reset flow.
func (c *Container) PasswordResetUseCase() (authUseCase.PasswordResetUseCase, error) {
	var err error
	c.passwordResetUseCaseInit.Do(func() {
		c.passwordResetUseCase, err = c.initPasswordResetUseCase()
		if err != nil {
			c.initErrors["passwordResetUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["passwordResetUseCase"]; exists {
		return nil, storedErr
	}
	return c.passwordResetUseCase, nil
}

// SessionUseCase returns the session orchestrator.
func (c *Container) SessionUseCase() (authUseCase.SessionUseCase, error) {
	var err error
	c.sessionUseCaseInit.Do(func() {
		c.sessionUseCase, err = c.initSessionUseCase()
		if err != nil {
			c.initErrors["sessionUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sessionUseCase"]; exists {
		return nil, storedErr
	}
	return c.sessionUseCase, nil
}

// RoleUseCase returns the role administration use case.
func (c *Container) RoleUseCase() (authUseCase.RoleUseCase, error) {
	var err error
	c.roleUseCaseInit.Do(func() {
		c.roleUseCase, err = c.initRoleUseCase()
		if err != nil {
			c.initErrors["roleUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["roleUseCase"]; exists {
		return nil, storedErr
	}
	return c.roleUseCase, nil
}

// HousekeepingUseCase returns the expired-row cleanup use case.
func (c *Container) HousekeepingUseCase() (authUseCase.HousekeepingUseCase, error) {
	var err error
	c.housekeepingUseCaseInit.Do(func() {
		c.housekeepingUseCase, err = c.initHousekeepingUseCase()
		if err != nil {
			c.initErrors["housekeepingUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["housekeepingUseCase"]; exists {
		return nil, storedErr
	}
	return c.housekeepingUseCase, nil
}

// SessionHandler returns the HTTP handler for the login, refresh and logout endpoints.
func (c *Container) SessionHandler() (*authHTTP.SessionHandler, error) {
	var err error
	c.sessionHandlerInit.Do(func() {
		var sessionUseCase authUseCase.SessionUseCase
		sessionUseCase, err = c.SessionUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get session use case for session handler: %w", err)
			c.initErrors["sessionHandler"] = err
			return
		}
		c.sessionHandler = authHTTP.NewSessionHandler(sessionUseCase, c.config.PasswordMinLength, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sessionHandler"]; exists {
		return nil, storedErr
	}
	return c.sessionHandler, nil
}

// PasswordHandler returns the HTTP handler for the password endpoints.
func (c *Container) PasswordHandler() (*authHTTP.PasswordHandler, error) {
	var err error
	c.passwordHandlerInit.Do(func() {
		var sessionUseCase authUseCase.SessionUseCase
		sessionUseCase, err = c.SessionUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get session use case for password handler: %w", err)
			c.initErrors["passwordHandler"] = err
			return
		}
		c.passwordHandler = authHTTP.NewPasswordHandler(sessionUseCase, c.config.PasswordMinLength, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["passwordHandler"]; exists {
		return nil, storedErr
	}
	return c.passwordHandler, nil
}

// RoleHandler returns the HTTP handler for role administration.
func (c *Container) RoleHandler() (*authHTTP.RoleHandler, error) {
	var err error
	c.roleHandlerInit.Do(func() {
		var roleUseCase authUseCase.RoleUseCase
		roleUseCase, err = c.RoleUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get role use case for role handler: %w", err)
			c.initErrors["roleHandler"] = err
			return
		}
		c.roleHandler = authHTTP.NewRoleHandler(roleUseCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["roleHandler"]; exists {
		return nil, storedErr
	}
	return c.roleHandler, nil
}

// initTokenCodec resolves the signing keys and builds the JWT codec.
//
// Keys come from JWT_ACCESS_SECRET / JWT_REFRESH_SECRET, unwrapped through the
// KMS keeper when JWT_SECRETS_KMS_KEY_URI is set. Outside production, missing
// keys are replaced with random ones and tokens do not survive a restart.
func (c *Container) initTokenCodec() (authService.TokenCodec, error) {
	access, refresh, err := c.loadSigningKeys(context.Background())
	if err != nil {
		return nil, err
	}

	if err := config.ValidateSigningKeys(access, refresh); err != nil {
		return nil, fmt.Errorf("invalid jwt signing keys: %w", err)
	}

	return authService.NewJWTService(authService.JWTConfig{
		AccessSecret:  access,
		RefreshSecret: refresh,
		AccessTTL:     c.config.JWTAccessExpiration,
		RefreshTTL:    c.config.JWTRefreshExpiration,
		Issuer:        c.config.JWTIssuer,
	})
}

func (c *Container) loadSigningKeys(ctx context.Context) ([]byte, []byte, error) {
	logger := c.Logger()
	accessSecret, refreshSecret := c.config.JWTAccessSecret, c.config.JWTRefreshSecret

	if c.config.JWTSecretsKMSKeyURI != "" {
		kmsService := c.KMSService()
		keeper, err := kmsService.OpenKeeper(ctx, c.config.JWTSecretsKMSKeyURI)
		if err != nil {
			return nil, nil, err
		}
		defer func() {
			if closeErr := keeper.Close(); closeErr != nil {
				logger.Warn("failed to close kms keeper", slog.Any("error", closeErr))
			}
		}()

		access, refresh, err := kmsService.DecryptSigningKeys(ctx, keeper, accessSecret, refreshSecret)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("jwt signing keys loaded from kms")
		return access, refresh, nil
	}

	if !c.config.IsProduction() {
		for name, secret := range map[string]*string{"access": &accessSecret, "refresh": &refreshSecret} {
			if *secret != "" {
				continue
			}
			generated, err := config.GenerateSigningKey()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to generate %s signing key: %w", name, err)
			}
			*secret = generated
			logger.Warn("jwt signing key not configured, using a random key",
				slog.String("key", name))
		}
	}

	return []byte(accessSecret), []byte(refreshSecret), nil
}

// initAuthRepositories creates the credential store repositories for the configured driver.
func (c *Container) initAuthRepositories() (*authRepositories, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for auth repositories: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return &authRepositories{
			users:          authPostgreSQL.NewPostgreSQLUserRepository(db),
			roles:          authPostgreSQL.NewPostgreSQLRoleRepository(db),
			refreshTokens:  authPostgreSQL.NewPostgreSQLRefreshTokenRepository(db),
			revokedTokens:  authPostgreSQL.NewPostgreSQLRevokedTokenRepository(db),
			twoFactor:      authPostgreSQL.NewPostgreSQLTwoFactorTokenRepository(db),
			passwordResets: authPostgreSQL.NewPostgreSQLPasswordResetTokenRepository(db),
		}, nil
	case "mysql":
		return &authRepositories{
			users:          authMySQL.NewMySQLUserRepository(db),
			roles:          authMySQL.NewMySQLRoleRepository(db),
			refreshTokens:  authMySQL.NewMySQLRefreshTokenRepository(db),
			revokedTokens:  authMySQL.NewMySQLRevokedTokenRepository(db),
			twoFactor:      authMySQL.NewMySQLTwoFactorTokenRepository(db),
			passwordResets: authMySQL.NewMySQLPasswordResetTokenRepository(db),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initRevocationCache connects to Redis when configured.
func (c *Container) initRevocationCache() (authUseCase.RevocationCache, error) {
	if c.config.RedisURL == "" {
		c.Logger().Info("revocation cache disabled, denylist lookups go to the database")
		return cache.NewNoopRevocationCache(), nil
	}

	client, err := cache.NewRedisClient(c.ctx, c.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.redisClient = client

	return cache.NewRedisRevocationCache(client, c.config.RevocationCachePrefix), nil
}

// initMailer creates the SMTP mailer, or the log mailer used in development.
func (c *Container) initMailer() (authUseCase.Mailer, error) {
	from := mailer.Sender{Name: c.config.EmailFromName, Address: c.config.EmailFromAddress}

	switch c.config.EmailDriver {
	case "smtp":
		smtpMailer, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:      c.config.SMTPHost,
			Port:      c.config.SMTPPort,
			Username:  c.config.SMTPUsername,
			Password:  c.config.SMTPPassword,
			TLSPolicy: c.config.SMTPTLSPolicy,
			Timeout:   c.config.EmailSendTimeout,
			From:      from,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create smtp mailer: %w", err)
		}
		return smtpMailer, nil
	case "log":
		return mailer.NewLogMailer(from, c.Logger()), nil
	default:
		return nil, fmt.Errorf("unsupported email driver: %s", c.config.EmailDriver)
	}
}

// initTwoFactorUseCase creates the challenge manager with all its dependencies.
func (c *Container) initTwoFactorUseCase() (authUseCase.TwoFactorUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for two-factor use case: %w", err)
	}

	repos, err := c.authRepositories()
	if err != nil {
		return nil, fmt.Errorf("failed to get repositories for two-factor use case: %w", err)
	}

	mail, err := c.Mailer()
	if err != nil {
		return nil, fmt.Errorf("failed to get mailer for two-factor use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for two-factor use case: %w", err)
	}

	return authUseCase.NewTwoFactorUseCase(
		c.config,
		txManager,
		repos.users,
		repos.twoFactor,
		c.TokenService(),
		mail,
		businessMetrics,
		c.Logger(),
	), nil
}

// initRevocationUseCase creates the revocation registry with all its dependencies.
func (c *Container) initRevocationUseCase() (authUseCase.RevocationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for revocation use case: %w", err)
	}

	repos, err := c.authRepositories()
	if err != nil {
		return nil, fmt.Errorf("failed to get repositories for revocation use case: %w", err)
	}

	revocationCache, err := c.RevocationCache()
	if err != nil {
		return nil, fmt.Errorf("failed to get revocation cache for revocation use case: %w", err)
	}

	tokenCodec, err := c.TokenCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to get token codec for revocation use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for revocation use case: %w", err)
	}

	return authUseCase.NewRevocationUseCase(
		c.config,
		txManager,
		repos.users,
		repos.refreshTokens,
		repos.revokedTokens,
		revocationCache,
		tokenCodec,
		c.TokenService(),
		businessMetrics,
		c.Logger(),
	), nil
}

// initPasswordResetUseCase creates the password reset flow with all its dependencies.
func (c *Container) initPasswordResetUseCase() (authUseCase.PasswordResetUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for password reset use case: %w", err)
	}

	repos, err := c.authRepositories()
	if err != nil {
		return nil, fmt.Errorf("failed to get repositories for password reset use case: %w", err)
	}

	revocation, err := c.RevocationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get revocation use case for password reset use case: %w", err)
	}

	passwordService, err := c.PasswordService()
	if err != nil {
		return nil, fmt.Errorf("failed to get password service for password reset use case: %w", err)
	}

	mail, err := c.Mailer()
	if err != nil {
		return nil, fmt.Errorf("failed to get mailer for password reset use case: %w", err)
	}

	return authUseCase.NewPasswordResetUseCase(
		c.config,
		txManager,
		repos.users,
		repos.passwordResets,
		revocation,
		passwordService,
		c.TokenService(),
		mail,
		c.Logger(),
	), nil
}

// initSessionUseCase creates the session orchestrator with all its dependencies.
func (c *Container) initSessionUseCase() (authUseCase.SessionUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for session use case: %w", err)
	}

	repos, err := c.authRepositories()
	if err != nil {
		return nil, fmt.Errorf("failed to get repositories for session use case: %w", err)
	}

	passwordService, err := c.PasswordService()
	if err != nil {
		return nil, fmt.Errorf("failed to get password service for session use case: %w", err)
	}

	tokenCodec, err := c.TokenCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to get token codec for session use case: %w", err)
	}

	twoFactor, err := c.TwoFactorUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get two-factor use case for session use case: %w", err)
	}

	revocation, err := c.RevocationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get revocation use case for session use case: %w", err)
	}

	passwordReset, err := c.PasswordResetUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get password reset use case for session use case: %w", err)
	}

	baseUseCase := authUseCase.NewSessionUseCase(
		c.config,
		txManager,
		repos.users,
		repos.roles,
		passwordService,
		tokenCodec,
		twoFactor,
		revocation,
		passwordReset,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for session use case: %w", err)
		}
		return authUseCase.NewSessionUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initRoleUseCase creates the role use case with all its dependencies.
func (c *Container) initRoleUseCase() (authUseCase.RoleUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for role use case: %w", err)
	}

	repos, err := c.authRepositories()
	if err != nil {
		return nil, fmt.Errorf("failed to get repositories for role use case: %w", err)
	}

	return authUseCase.NewRoleUseCase(txManager, repos.roles, c.Logger()), nil
}

// initHousekeepingUseCase creates the cleanup use case with all its dependencies.
func (c *Container) initHousekeepingUseCase() (authUseCase.HousekeepingUseCase, error) {
	repos, err := c.authRepositories()
	if err != nil {
		return nil, fmt.Errorf("failed to get repositories for housekeeping use case: %w", err)
	}

	baseUseCase := authUseCase.NewHousekeepingUseCase(
		c.config,
		repos.refreshTokens,
		repos.revokedTokens,
		repos.twoFactor,
		repos.passwordResets,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for housekeeping use case: %w", err)
		}
		return authUseCase.NewHousekeepingUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
