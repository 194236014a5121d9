// Command doc-gen renders the nethost ops HTTP surface's OpenAPI
// document: a go-restful-openapi build-then-validate flow pointed at
// nethost's own handlers.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/loads"
	"github.com/go-openapi/spec"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"

	"nethost.io/nethost/internal/apis"
	configv1alpha1 "nethost.io/nethost/internal/apis/config/v1alpha1"
	"nethost.io/nethost/internal/apis/healthz"
	"nethost.io/nethost/internal/apis/networkinfo"
	"nethost.io/nethost/internal/apis/version"
	"nethost.io/nethost/internal/config"
	"nethost.io/nethost/internal/log"
	urlruntime "nethost.io/nethost/internal/runtime"
	"nethost.io/nethost/internal/store/memstore"
)

var output string

func init() {
	log.Setup()
	flag.StringVar(&output, "output", "./api/nethost-openapi-spec/swagger.json", "--output=./api.json")
}

func main() {
	flag.Parse()
	if err := validateSpec(generateSwaggerJSON()); err != nil {
		log.Warnf("swagger specification validation failed: %v", err)
	}
	log.Flush()
}

func validateSpec(apiSpec []byte) error {
	swaggerDoc, err := loads.Analyzed(apiSpec, "")
	if err != nil {
		return err
	}

	validate.SetContinueOnErrors(false)
	v := validate.NewSpecValidator(swaggerDoc.Schema(), strfmt.Default)
	result, _ := v.Validate(swaggerDoc)

	if result.HasWarnings() {
		log.Infof("see warnings below:\n")
		for _, warning := range result.Warnings {
			log.Infof("- WARNING: %s\n", warning.Error())
		}
	}

	if result.HasErrors() {
		str := fmt.Sprintf("the swagger spec is invalid against swagger specification %s.\nsee errors below:\n", swaggerDoc.Version())
		for _, desc := range result.Errors {
			str += fmt.Sprintf("- %s\n", desc.Error())
		}
		log.Infoln(str)
		return errors.New(str)
	}
	return nil
}

func generateSwaggerJSON() []byte {
	container := restful.NewContainer()
	container.Router(restful.CurlyRouter{})

	handlers := []apis.Handler{
		version.NewHandler(),
		healthz.NewHandler(),
		configv1alpha1.NewHandler(config.NewOptions()),
		networkinfo.NewHandler(memstore.New()),
	}
	for _, h := range handlers {
		urlruntime.Must(h.AddToContainer(container))
	}

	cfg := restfulspec.Config{
		WebServices:                   container.RegisteredWebServices(),
		PostBuildSwaggerObjectHandler: enrichSwaggerObject,
	}

	data, _ := json.MarshalIndent(restfulspec.BuildSwagger(cfg), "", "  ")
	if err := os.WriteFile(output, data, 0644); err != nil {
		log.Fatalln(err)
	}
	log.Infof("successfully written to %s", output)
	return data
}

func enrichSwaggerObject(swo *spec.Swagger) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "nethost API",
			Description: "nethost ops HTTP surface",
			Version:     gitVersion(),
		},
	}

	swo.Tags = []spec.Tag{
		{TagProps: spec.TagProps{Name: apis.TagNonResourceAPI}},
	}
}

func gitVersion() string {
	out, err := exec.Command("sh", "-c", "git tag --sort=committerdate | tail -1 | tr -d '\n'").Output()
	if err != nil {
		log.Infof("failed to get git version: %s", err)
		return "v0.0.0"
	}
	return string(out)
}
