// Package config provides configuration parsing for prowser.
//
// The configuration is stored in prowser.json, prowser.yaml or prowser.yml
// in the working directory. This package handles loading, saving, and
// validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "browser": {
//	    "home": "https://example.com",
//	    "timeout": "10s",
//	    "userAgent": "prowser/1.0"
//	  },
//	  "builder": {
//	    "denylist": ["script", "style"],
//	    "keyAttr": "id",
//	    "maxDepth": 512
//	  },
//	  "render": {
//	    "pretty": true
//	  },
//	  "serve": {
//	    "host": "localhost",
//	    "port": 8080,
//	    "document": "index.html",
//	    "watchInterval": "1s"
//	  },
//	  "s3": {
//	    "region": "us-east-1"
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "prowser"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Address:", cfg.ServeAddress())
package config
