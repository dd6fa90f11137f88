package economy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/SebastianAlessandro/gcam-core/core/logger"
	"github.com/SebastianAlessandro/gcam-core/core/market"
	"github.com/SebastianAlessandro/gcam-core/core/marketplace"
)

// MarketDef declares a market and the regions it aggregates.
type MarketDef struct {
	Good         string   `yaml:"good"`
	Market       string   `yaml:"market"`
	Regions      []string `yaml:"regions"`
	Type         string   `yaml:"type"`
	InitialPrice float64  `yaml:"initial_price"`
	FixedPrice   float64  `yaml:"fixed_price"`
	Solve        *bool    `yaml:"solve"`
}

// ConsumerDef declares a consumer.
type ConsumerDef struct {
	Name   string `yaml:"name"`
	Region string `yaml:"region"`
	Good   string `yaml:"good"`
	Curve  `yaml:",inline"`
}

// ProducerDef declares a producer.
type ProducerDef struct {
	Name   string             `yaml:"name"`
	Region string             `yaml:"region"`
	Good   string             `yaml:"good"`
	Inputs map[string]float64 `yaml:"inputs"`
	Curve  `yaml:",inline"`
}

// Scenario is a complete standalone run: markets and the agents trading in them.
type Scenario struct {
	Name      string        `yaml:"name"`
	Periods   int           `yaml:"periods"`
	Markets   []MarketDef   `yaml:"markets"`
	Consumers []ConsumerDef `yaml:"consumers"`
	Producers []ProducerDef `yaml:"producers"`
}

// Load reads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a YAML scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario is self-consistent before any market is built.
func (sc *Scenario) Validate() error {
	var errs []error
	if sc.Periods <= 0 {
		errs = append(errs, fmt.Errorf("periods must be positive, got %d", sc.Periods))
	}
	if len(sc.Markets) == 0 {
		errs = append(errs, errors.New("no markets defined"))
	}
	for i, m := range sc.Markets {
		if m.Good == "" || m.Market == "" || len(m.Regions) == 0 {
			errs = append(errs, fmt.Errorf("market %d: good, market and regions are required", i))
		}
		if _, err := market.ParseKind(m.Type); err != nil {
			errs = append(errs, fmt.Errorf("market %s%s: %w", m.Market, m.Good, err))
		}
	}
	for _, c := range sc.Consumers {
		if err := c.Curve.validate(); err != nil {
			errs = append(errs, fmt.Errorf("consumer %s: %w", c.Name, err))
		}
	}
	for _, p := range sc.Producers {
		if err := p.Curve.validate(); err != nil {
			errs = append(errs, fmt.Errorf("producer %s: %w", p.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Build creates the marketplace with every market of the scenario and the
// economy of its agents. Every good an agent trades must be served in the
// agent's region.
func (sc *Scenario) Build(log logger.Logger, opts ...Option) (*marketplace.Marketplace, *Economy, error) {
	mp, err := marketplace.New(sc.Periods, log)
	if err != nil {
		return nil, nil, err
	}
	for _, def := range sc.Markets {
		kind, err := market.ParseKind(def.Type)
		if err != nil {
			return nil, nil, err
		}
		spec := marketplace.MarketSpec{
			Good:         def.Good,
			Market:       def.Market,
			Kind:         kind,
			InitialPrice: def.InitialPrice,
			FixedPrice:   def.FixedPrice,
			Solve:        def.Solve == nil || *def.Solve,
		}
		for _, region := range def.Regions {
			if _, err := mp.CreateMarket(region, spec); err != nil {
				return nil, nil, err
			}
		}
	}

	agents := make([]Agent, 0, len(sc.Consumers)+len(sc.Producers))
	for _, c := range sc.Consumers {
		agents = append(agents, &Consumer{ID: name(c.Name, "consumer", c.Region, c.Good), Region: c.Region, Good: c.Good, Curve: c.Curve})
	}
	for _, p := range sc.Producers {
		agents = append(agents, &Producer{ID: name(p.Name, "producer", p.Region, p.Good), Region: p.Region, Good: p.Good, Curve: p.Curve, Inputs: p.Inputs})
	}
	for _, a := range agents {
		if err := checkServed(mp, a); err != nil {
			return nil, nil, err
		}
	}
	return mp, New(agents, append([]Option{WithLogger(log)}, opts...)...), nil
}

func name(n, role, region, good string) string {
	if n != "" {
		return n
	}
	return fmt.Sprintf("%s-%s-%s", role, region, good)
}

func checkServed(mp *marketplace.Marketplace, a Agent) error {
	var region string
	var goods []string
	switch v := a.(type) {
	case *Consumer:
		region = v.Region
		goods = append(goods, v.Good)
		for g := range v.Curve.Cross {
			goods = append(goods, g)
		}
	case *Producer:
		region = v.Region
		goods = append(goods, v.Good)
		for g := range v.Inputs {
			goods = append(goods, g)
		}
		for g := range v.Curve.Cross {
			goods = append(goods, g)
		}
	}
	for _, g := range goods {
		if _, err := mp.Lookup(g, region, 0); err != nil {
			return fmt.Errorf("agent %s: %w", a.Name(), err)
		}
	}
	return nil
}
