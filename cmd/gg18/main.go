// Command gg18 is the command-line surface of the threshold signer:
// keygen, sign and reshare against a rendezvous manager.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/bus"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/hd"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/keystore"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/protocol/keygen"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/protocol/reshare"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/protocol/sign"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/sampler"
	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

var (
	managerAddr string
	quiet       bool
	sampleFile  string
	hdPath      string

	rootCmd = &cobra.Command{
		Use:           "gg18",
		Short:         "GG18 threshold ECDSA signer with HD derivation and resharing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	keygenCmd = &cobra.Command{
		Use:   "keygen <keysfile> <t/n>",
		Short: "Run distributed key generation",
		Args:  cobra.ExactArgs(2),
		RunE:  runKeygen,
	}

	signCmd = &cobra.Command{
		Use:   "sign <keysfile> <t/t'/n> <hex-msg>",
		Short: "Run threshold signing",
		Args:  cobra.ExactArgs(3),
		RunE:  runSign,
	}

	reshareCmd = &cobra.Command{
		Use:   "reshare <keysfile> <t/t'/n> <give> <hold> <receive>",
		Short: "Run proactive resharing",
		Args:  cobra.ExactArgs(5),
		RunE:  runReshare,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&managerAddr, "addr", "a", "http://127.0.0.1:8000", "URL of the rendezvous manager")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress logging")
	rootCmd.PersistentFlags().StringVar(&sampleFile, "sample-file", "", "record intermediate values to this file (never use on real keys)")
	signCmd.Flags().StringVarP(&hdPath, "path", "p", "", "BIP32 non-hardened derivation path, e.g. m/0/1")
	rootCmd.AddCommand(keygenCmd, signCmd, reshareCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	if quiet {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func newSession(signup *bus.PartySignup) *tss.Session {
	sess := tss.NewSession(signup.UUID, signup.Number, newLogger())
	if sampleFile != "" {
		if rec, err := sampler.Open(sampleFile, signup.UUID, signup.Number); err == nil {
			sess.Rec = rec
		}
	}
	return sess
}

func runKeygen(cmd *cobra.Command, args []string) error {
	keysfile := args[0]
	params, err := tss.ParseParams(args[1])
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	client := bus.NewHTTPBus(managerAddr)
	signup, err := client.Signup(ctx, "signupkeygen", bus.NewSignupParams(params))
	if err != nil {
		return err
	}
	sess := newSession(signup)
	fmt.Printf("number: %d, uuid: %s\n", signup.Number, signup.UUID)

	res, err := keygen.Run(ctx, sess, client, params)
	if err != nil {
		return err
	}
	if err := keystore.FromKeygen(res).Save(keysfile); err != nil {
		return err
	}
	fmt.Printf("keys written to %s\n", keysfile)
	fmt.Printf("public key: %x\n", res.Y.SerializeCompressed())
	fmt.Printf("phrase: %s\n", res.Mnemonic)
	return nil
}

func runSign(cmd *cobra.Command, args []string) error {
	keysfile := args[0]
	params, err := tss.ParseParams(args[1])
	if err != nil {
		return err
	}
	if err := params.ValidateSign(); err != nil {
		return err
	}

	ks, err := keystore.Load(keysfile)
	if err != nil {
		return err
	}

	// Derive the tweak before touching the bus; a hardened path must
	// fail before any round runs.
	tweak := big.NewInt(0)
	if hdPath != "" {
		if tweak, _, err = hd.Derive(hdPath, ks.Y, ks.ChainCode); err != nil {
			return err
		}
	}

	message, err := hex.DecodeString(args[2])
	if err != nil {
		message = []byte(args[2])
	}

	ctx := context.Background()
	client := bus.NewHTTPBus(managerAddr)
	signup, err := client.Signup(ctx, "signupkeygen", bus.NewSignupParams(params))
	if err != nil {
		return err
	}
	sess := newSession(signup)

	sig, y, err := sign.Run(ctx, sess, client, params, ks, message, tweak)
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(map[string]any{
		"r":      fmt.Sprintf("%064x", sig.R),
		"s":      fmt.Sprintf("%064x", sig.S),
		"recid":  sig.Recid,
		"x":      fmt.Sprintf("%x", y.X()),
		"y":      fmt.Sprintf("%x", y.Y()),
		"status": "signature_ready",
	}, "", "  ")
	fmt.Println(string(out))
	return nil
}

func runReshare(cmd *cobra.Command, args []string) error {
	keysfile := args[0]
	params, err := tss.ParseParams(args[1])
	if err != nil {
		return err
	}
	if err := params.ValidateReshare(); err != nil {
		return err
	}
	roles := tss.Roles{
		Give:    parseBool(args[2]),
		Hold:    parseBool(args[3]),
		Receive: parseBool(args[4]),
	}
	if err := roles.Validate(); err != nil {
		return err
	}

	var ks *keystore.Keystore
	if roles.Give || roles.Hold {
		if ks, err = keystore.Load(keysfile); err != nil {
			return err
		}
	}

	ctx := context.Background()
	client := bus.NewHTTPBus(managerAddr)
	signup, err := client.Signup(ctx, "signupreshare", bus.NewSignupParams(params))
	if err != nil {
		return err
	}
	sess := newSession(signup)

	newKs, mnemonic, err := reshare.Run(ctx, sess, client, params, roles, ks)
	if err != nil {
		return err
	}
	if newKs != nil {
		if err := newKs.Save(keysfile); err != nil {
			return err
		}
		fmt.Printf("keys written to %s\n", keysfile)
		fmt.Printf("phrase of u_i: %s\n", mnemonic)
	}
	return nil
}

func parseBool(s string) bool {
	return s == "t" || s == "T"
}
