// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sasl "github.com/golang-auth/go-gssapi-sasl"
	"github.com/golang-auth/go-gssapi-sasl/internal/log"
)

const (
	envPrefix  = "GSS_SASL"
	configName = "gss-sasl"

	defaultPort = 4752
)

// settings is the merged view of flags, environment and config file.
type settings struct {
	Service     string
	Host        string
	Port        int
	QoP         sasl.QoPSet
	MaxBuffer   uint32
	Principal   string
	Password    string
	Keytab      string
	CCache      string
	Krb5Conf    string
	Realm       string
	ReplayCache string
	AcceptRate  float64
	ClockSkew   time.Duration
	Output      string
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:          "gss-sasl",
		Short:        "SASL GSSAPI (RFC 4752) negotiation tool",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./gss-sasl.yaml or $XDG_CONFIG_HOME/gss-sasl/gss-sasl.yaml)")
	pf.Bool("debug", false, "log negotiation steps to stderr")
	pf.String("service", "host", "service name of the acceptor")
	pf.String("host", "", "host name of the acceptor")
	pf.Int("port", defaultPort, "TCP port")
	pf.String("qop", "auth", "quality of protection list: auth, auth-int, auth-conf")
	pf.Uint32("max-buffer", sasl.DefaultMaxBuffer, "largest protected message to accept")
	pf.String("krb5-conf", "", "krb5.conf path (default $KRB5_CONFIG or /etc/krb5.conf)")
	pf.StringP("output", "o", "text", "report format: text or yaml")
	_ = v.BindPFlags(pf)

	root.AddCommand(newClientCmd(v), newServerCmd(v), newSelftestCmd(v))

	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, configName))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return oops.In("config").Wrapf(err, "reading configuration")
		}
	}

	if v.GetBool("debug") {
		log.SetOutput(os.Stderr, logrus.DebugLevel)
	}
	log.Get().WithFields(log.Fields{"at": "config", "file": v.ConfigFileUsed()}).Debug("configuration loaded")

	return nil
}

func loadSettings(v *viper.Viper) (settings, error) {
	qop, err := sasl.ParseQoPSet(v.GetString("qop"))
	if err != nil {
		return settings{}, oops.In("config").With("qop", v.GetString("qop")).Wrap(err)
	}

	s := settings{
		Service:     v.GetString("service"),
		Host:        v.GetString("host"),
		Port:        v.GetInt("port"),
		QoP:         qop,
		MaxBuffer:   v.GetUint32("max-buffer"),
		Principal:   v.GetString("principal"),
		Password:    v.GetString("password"),
		Keytab:      v.GetString("keytab"),
		CCache:      v.GetString("ccache"),
		Krb5Conf:    v.GetString("krb5-conf"),
		Realm:       v.GetString("realm"),
		ReplayCache: v.GetString("replay-cache"),
		AcceptRate:  v.GetFloat64("accept-rate"),
		ClockSkew:   v.GetDuration("clock-skew"),
		Output:      v.GetString("output"),
	}

	switch s.Output {
	case "text", "yaml":
	default:
		return settings{}, oops.In("config").Errorf("unknown output format %q", s.Output)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return settings{}, oops.In("config").Errorf("invalid port %d", s.Port)
	}

	return s, nil
}
