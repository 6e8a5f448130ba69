// Command oidcctl inspects OpenID Connect protocol messages:
// it parses authentication request URIs, lists the claims an ID token
// requires for a response type and verifies ID tokens against a JWKS.
// Test tokens can be signed with a local private key and client
// metadata documents can be checked.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zitadel/logging"
	"golang.org/x/exp/slog"

	"github.com/zitadel/oidc-core/cmd/oidcctl/config"
)

const usage = `usage: oidcctl [flags] <command> <argument>

commands:
  parse  <uri>            parse an authentication request URI
  claims <response_type>  list the claims an ID token must contain
  verify <id_token>       verify an ID token
  sign   <claims_file>    sign a JSON claims file with the -key
  client <metadata_file>  parse client metadata and apply the defaults

flags:
`

var ErrUsage = errors.New("invalid usage")

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("oidcctl failed")
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.FromEnvVars(nil)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("oidcctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "expected issuer of the ID token (OIDC_ISSUER)")
	fs.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "client ID the ID token must be issued to (OIDC_CLIENT_ID)")
	fs.StringVar(&cfg.JWKSURI, "jwks-uri", cfg.JWKSURI, "JWKS of the issuer, discovered when empty (OIDC_JWKS_URI)")
	fs.DurationVar(&cfg.MaxClockSkew, "max-clock-skew", cfg.MaxClockSkew, "tolerated clock skew (OIDC_MAX_CLOCK_SKEW)")
	algs := fs.String("algs", strings.Join(cfg.SigningAlgs, ","), "comma separated signing algorithms, RS256 when empty (OIDC_SIGNING_ALGS)")
	nonce := fs.String("nonce", "", "expected nonce of the ID token")
	keyFile := fs.String("key", "", "PEM encoded private key used by sign")
	keyID := fs.String("kid", "", "key ID set in the header of signed tokens")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err = fs.Parse(args); err != nil {
		return err
	}
	if *algs != "" {
		cfg.SigningAlgs = strings.Split(*algs, ",")
	} else {
		cfg.SigningAlgs = nil
	}
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
		ctx = logging.ToContext(ctx, slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("%w: expected a command and one argument", ErrUsage)
	}
	command, argument := fs.Arg(0), fs.Arg(1)
	logrus.WithField("command", command).Debug("running")

	switch command {
	case "parse":
		return parseCommand(stdout, argument)
	case "claims":
		return claimsCommand(stdout, argument)
	case "verify":
		return verifyCommand(ctx, stdout, cfg, argument, *nonce)
	case "sign":
		return signCommand(stdout, *keyFile, *keyID, argument)
	case "client":
		return clientCommand(stdout, argument)
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, command)
	}
}
