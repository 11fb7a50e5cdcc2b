package financing

import (
	"fmt"

	"nftfi/crypto"
	"nftfi/native/escrow"
	"nftfi/native/lending"
	"nftfi/native/records"
	"nftfi/native/token"
	"nftfi/storage"
)

var (
	// EngineAddress holds down payments and deposited NFTs.
	EngineAddress = crypto.DeriveAddress([]byte("nftfi/financing/engine"))
	// RegistryAddress holds pool capital and repayments.
	RegistryAddress = crypto.DeriveAddress([]byte("nftfi/lending/registry"))
)

// Deployment groups the components produced by Deploy.
type Deployment struct {
	Space     *records.Space
	Pools     *records.PoolStore
	Purchases *records.PurchaseStore
	Registry  *lending.PoolRegistry
	Vault     *escrow.Vault
	Engine    *Engine
}

// Deploy opens every store on db as the deployer and then hands ownership
// down the chain: pool store to the registry, purchase store, registry and
// vault to the engine. A Collection passed as nfts gets the engine registered
// as its safe-transfer receiver.
func Deploy(db storage.Database, deployer crypto.Address, funds token.Fungible, nfts token.NonFungible, cfg lending.Config) (*Deployment, error) {
	space := records.NewSpace(db)
	pools, err := records.OpenPoolStore(space, deployer)
	if err != nil {
		return nil, err
	}
	purchases, err := records.OpenPurchaseStore(space, deployer)
	if err != nil {
		return nil, err
	}
	vault, err := escrow.NewVault(space, deployer, nfts)
	if err != nil {
		return nil, err
	}
	if err := pools.TransferOwnership(deployer, RegistryAddress); err != nil {
		return nil, fmt.Errorf("hand pool store to registry: %w", err)
	}
	registry, err := lending.NewRegistry(RegistryAddress, deployer, space, pools, funds, cfg)
	if err != nil {
		return nil, err
	}
	if err := registry.TransferOwnership(deployer, EngineAddress); err != nil {
		return nil, fmt.Errorf("hand registry to engine: %w", err)
	}
	if err := purchases.TransferOwnership(deployer, EngineAddress); err != nil {
		return nil, fmt.Errorf("hand purchase store to engine: %w", err)
	}
	if err := vault.TransferOwnership(deployer, EngineAddress); err != nil {
		return nil, fmt.Errorf("hand escrow vault to engine: %w", err)
	}
	engine, err := NewEngine(Params{
		Address:   EngineAddress,
		Admin:     deployer,
		Space:     space,
		Purchases: purchases,
		Registry:  registry,
		Vault:     vault,
		Funds:     funds,
		NFTs:      nfts,
	})
	if err != nil {
		return nil, err
	}
	if collection, ok := nfts.(*token.Collection); ok {
		collection.RegisterReceiver(EngineAddress, engine)
	}
	return &Deployment{
		Space:     space,
		Pools:     pools,
		Purchases: purchases,
		Registry:  registry,
		Vault:     vault,
		Engine:    engine,
	}, nil
}
