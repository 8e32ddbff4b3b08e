package configuration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/cronoslabs/settlex/chain"
	"github.com/cronoslabs/settlex/facilitator"
	"github.com/cronoslabs/settlex/telemetry"
	"github.com/cronoslabs/settlex/wallet"
	"github.com/cronoslabs/settlex/zincadapter"
)

// Configuration is the main configuration of the application that corresponds
// to the *.yaml file that holds the configuration.
type Configuration struct {
	Network          string             `yaml:"network"` // logical network id, cronos or cronos-testnet
	Facilitator      facilitator.Config `yaml:"facilitator"`
	Chain            chain.Config       `yaml:"chain"`
	Wallet           wallet.Config      `yaml:"wallet"`
	ZincLogger       zincadapter.Config `yaml:"zinc_logger"`
	Telemetry        telemetry.Config   `yaml:"telemetry"`
	MinConfirmations uint64             `yaml:"min_confirmations"` // direct transfer confirmation depth, 0 selects the default of 2
}

// Read reads the configuration from the file and returns the Configuration
// with fields set according to the yaml setup.
func Read(path string) (Configuration, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, err
	}

	var main Configuration
	err = yaml.Unmarshal(buf, &main)
	if err != nil {
		return Configuration{}, fmt.Errorf("in file %q: %w", path, err)
	}

	return main, err
}
